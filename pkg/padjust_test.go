package lsrna

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBH(t *testing.T) {
	adj := BH([]float64{0.01, 0.04, 0.03, 0.2})
	assert.InDeltaSlice(t, []float64{0.04, 0.04 * 4 / 3, 0.04 * 4 / 3, 0.2}, adj, 1e-12)
	assert.Nil(t, BH(nil))
	assert.Equal(t, []float64{1, 1}, BH([]float64{1, 0.9}))
}

func TestQValues(t *testing.T) {
	ps := []float64{0.001, 0.01, 0.6, 0.7, 0.8, 0.9}
	// 4 / (6 * 0.5) is capped at one
	assert.Equal(t, 1.0, Pi0(ps, StoreyPi0Lambda))

	ps = []float64{0.001, 0.002, 0.003, 0.004, 0.9, 0.2, 0.3, 0.8}
	pi0 := Pi0(ps, StoreyPi0Lambda)
	assert.InDelta(t, 0.5, pi0, 1e-12)
	q := QValues(ps)
	bh := BH(ps)
	for i := range q {
		assert.InDelta(t, bh[i]*pi0, q[i], 1e-12)
		assert.LessOrEqual(t, q[i], bh[i])
	}
	assert.Equal(t, 1.0, Pi0([]float64{0.1, 0.2}, StoreyPi0Lambda))
}

func TestQuantileR7(t *testing.T) {
	fs := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, QuantileR7(fs, 0.5))
	assert.Equal(t, 3.25, QuantileR7(fs, 0.75))
	assert.Equal(t, 1.0, QuantileR7(fs, 0))
	assert.Equal(t, 4.0, QuantileR7(fs, 1))
	assert.Equal(t, []float64{4, 1, 3, 2}, fs)
}

func TestRankOrder(t *testing.T) {
	assert.Equal(t, []float64{3.5, 1, 2, 3.5}, Rank([]float64{5, 1, 2, 5}))
	assert.Equal(t, []int{1, 2, 0, 3}, Order([]float64{5, 1, 2, 5}))
}
