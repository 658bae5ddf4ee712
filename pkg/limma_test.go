package lsrna

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
)

func TestTrigammaInverse(t *testing.T) {
	for _, x := range []float64{0.05, 0.5, 1, 3.7, 12, 150} {
		assert.InEpsilon(t, x, trigammaInverse(trigamma(x)), 1e-6, "x=%v", x)
	}
	// trigamma(1) = pi^2/6
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-8)
}

func TestLmFitOLS(t *testing.T) {
	tab := LabelByPrefix([]string{"HC1", "HC2", "LS1", "LS2"}, "HC")
	d, con := BuildDesign(tab)
	e := mat.NewDense(2, 4, []float64{
		1, 3, 6, 8,
		2, 2, 2, 2,
	})
	fit, err := LmFit(e, nil, d)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 7}, fit.Coefficients.RawRowView(0), 1e-12)
	assert.InDelta(t, math.Sqrt(2), fit.Sigma[0], 1e-12)
	assert.Equal(t, 2.0, fit.DfResidual[0])
	assert.Equal(t, 4.5, fit.Amean[0])
	assert.InDelta(t, math.Sqrt(0.5), fit.StdevUnscaled.At(0, 1), 1e-12)

	cf, err := ContrastsFit(fit, con)
	require.NoError(t, err)
	assert.InDelta(t, 5, cf.Coefficient[0], 1e-12)
	assert.InDelta(t, 1, cf.StdevUnscaled[0], 1e-12)
	assert.InDelta(t, 0, cf.Coefficient[1], 1e-12)
}

func TestLmFitTooFewSamples(t *testing.T) {
	tab := LabelByPrefix([]string{"HC1", "LS1"}, "HC")
	d, _ := BuildDesign(tab)
	_, err := LmFit(mat.NewDense(1, 2, []float64{1, 2}), nil, d)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestContrastsFitShape(t *testing.T) {
	tab := LabelByPrefix([]string{"HC1", "HC2", "LS1", "LS2"}, "HC")
	d, _ := BuildDesign(tab)
	fit, err := LmFit(mat.NewDense(1, 4, []float64{1, 2, 3, 4}), nil, d)
	require.NoError(t, err)
	_, err = ContrastsFit(fit, Contrast{Name: "bad", Weights: []float64{1}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestFitFDistConstant(t *testing.T) {
	x := []float64{2, 2, 2, 2, 2}
	df := []float64{3, 3, 3, 3, 3}
	s20, d0 := FitFDist(x, df)
	// With no excess spread the prior is the bias-corrected mean log variance.
	assert.InDelta(t, 2*math.Exp(math.Log(1.5)-mathext.Digamma(1.5)), s20, 1e-9)
	assert.True(t, math.IsInf(d0, 1))
}

func TestDifferentialExpressionRecoversPlantedGenes(t *testing.T) {
	study := defaultStudy()
	m, labels := study.build(t)
	cs, err := Normalize(m, labels)
	require.NoError(t, err)

	tab, v, err := DifferentialExpression(cs, labels)
	require.NoError(t, err)
	require.NoError(t, tab.Validate())
	assert.Equal(t, "LS-Healthy", tab.Contrast)

	ng, ns := v.E.Dims()
	assert.Equal(t, len(cs.Matrix.Genes), ng)
	assert.Equal(t, len(labels.Records), ns)
	wr, wc := v.Weights.Dims()
	assert.Equal(t, ng, wr)
	assert.Equal(t, ns, wc)
	for i := 0; i < wr; i++ {
		for _, w := range v.Weights.RawRowView(i) {
			require.Greater(t, w, 0.0)
		}
	}

	planted := map[string]float64{}
	for i := 0; i < 2*study.NEff; i++ {
		sign := 1.0
		if i >= study.NEff {
			sign = -1
		}
		planted[m.Genes[i]] = sign
	}

	for i := 1; i < len(tab.Rows); i++ {
		require.LessOrEqual(t, tab.Rows[i-1].P, tab.Rows[i].P)
	}
	for _, r := range tab.Rows[:len(planted)] {
		sign, ok := planted[r.Gene]
		require.True(t, ok, "unexpected top gene %v", r.Gene)
		assert.Equal(t, sign, math.Copysign(1, r.LogFC), r.Gene)
		assert.InDelta(t, 2, math.Abs(r.LogFC), 0.8, r.Gene)
		assert.Less(t, r.AdjP, 0.05, r.Gene)
	}

	gl := Partition(tab, DefaultExportPolicy())
	assert.Equal(t, len(gl.All), len(gl.Up)+len(gl.Down))
	assert.GreaterOrEqual(t, len(gl.All), len(planted))
	for _, r := range gl.Up {
		assert.Greater(t, r.LogFC, 0.0)
		assert.Greater(t, r.T, 0.0)
	}
	for _, r := range gl.Down {
		assert.Less(t, r.LogFC, 0.0)
		assert.Less(t, r.T, 0.0)
	}
}

func TestDifferentialExpressionNullHasFewCalls(t *testing.T) {
	study := defaultStudy()
	study.NEff = 0
	study.Seed = 11
	m, labels := study.build(t)
	cs, err := Normalize(m, labels)
	require.NoError(t, err)
	tab, _, err := DifferentialExpression(cs, labels)
	require.NoError(t, err)
	gl := Partition(tab, DefaultExportPolicy())
	assert.LessOrEqual(t, len(gl.All), 5)
}
