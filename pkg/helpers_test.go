package lsrna

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// synthStudy simulates Poisson counts for nh healthy and nl LS samples.
// The first NEff genes are raised Fold times in LS and the next NEff genes
// are lowered by the same factor.
type synthStudy struct {
	Genes int
	NH    int
	NL    int
	NEff  int
	Fold  float64
	Seed  uint64
}

func (s synthStudy) build(t *testing.T) (ExprMatrix, SampleTable) {
	t.Helper()
	src := rand.NewSource(s.Seed)
	r := rand.New(src)
	ns := s.NH + s.NL
	genes := make([]string, s.Genes)
	samples := make([]string, 0, ns)
	for i := 0; i < s.NH; i++ {
		samples = append(samples, fmt.Sprintf("HC%v", i+1))
	}
	for i := 0; i < s.NL; i++ {
		samples = append(samples, fmt.Sprintf("LS%v", i+1))
	}
	depth := make([]float64, ns)
	for j := range depth {
		depth[j] = 0.7 + 0.6*r.Float64()
	}
	data := make([]float64, 0, s.Genes*ns)
	for i := range genes {
		genes[i] = fmt.Sprintf("GENE%03d", i)
		base := 50 + 1950*r.Float64()
		for j := 0; j < ns; j++ {
			mu := base * depth[j]
			if j >= s.NH {
				switch {
				case i < s.NEff:
					mu *= s.Fold
				case i < 2*s.NEff:
					mu /= s.Fold
				}
			}
			data = append(data, distuv.Poisson{Lambda: mu, Src: src}.Rand())
		}
	}
	m, e := NewExprMatrix(genes, samples, data)
	require.NoError(t, e)
	return m, LabelByPrefix(samples, DefaultHealthyPrefix)
}

func defaultStudy() synthStudy {
	return synthStudy{Genes: 200, NH: 5, NL: 5, NEff: 10, Fold: 4, Seed: 7}
}
