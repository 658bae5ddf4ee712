package lsrna

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ExplorePrior is the prior count used for log-CPM values in the
// exploratory plots and the heatmap.
const ExplorePrior = 2.0

type PCAResult struct {
	Samples []string
	// Scores is samples x components.
	Scores *mat.Dense
	// VarPercent is the share of variance explained per component, in percent.
	VarPercent []float64
}

// SampleMatrix transposes a genes x samples log-CPM matrix into samples x
// genes, dropping genes with zero variance, then centres and scales each
// gene.
func SampleMatrix(logcpm mat.Matrix) (*mat.Dense, error) {
	r, c := logcpm.Dims()
	var keep [][]float64
	col := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(col, i, logcpm)
		if stat.Variance(col, nil) > 0 {
			zs, e := Zscores(col)
			if e != nil {
				return nil, e
			}
			keep = append(keep, zs)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("SampleMatrix: every gene is constant; %w", ErrInsufficientData)
	}
	out := mat.NewDense(c, len(keep), nil)
	for j, zs := range keep {
		out.SetCol(j, zs)
	}
	return out, nil
}

// PCA computes principal component scores for the samples of cs.
func PCA(cs CountSet) (PCAResult, error) {
	x, e := SampleMatrix(LogCPM(cs, ExplorePrior))
	if e != nil {
		return PCAResult{}, fmt.Errorf("PCA: %w", e)
	}
	return PCAOf(x, cs.Matrix.Samples)
}

// PCAOf runs PCA on a samples x features matrix.
func PCAOf(x *mat.Dense, samples []string) (PCAResult, error) {
	n, _ := x.Dims()
	if n < 2 {
		return PCAResult{}, fmt.Errorf("PCAOf: %v samples; %w", n, ErrInsufficientData)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return PCAResult{}, fmt.Errorf("PCAOf: decomposition failed; %w", ErrInsufficientData)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	centred := mat.DenseCopyOf(x)
	_, d := centred.Dims()
	colv := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(colv, j, centred)
		floats.AddConst(-stat.Mean(colv, nil), colv)
		centred.SetCol(j, colv)
	}
	var scores mat.Dense
	scores.Mul(centred, &vecs)

	total := floats.Sum(vars)
	pct := make([]float64, len(vars))
	for i, v := range vars {
		pct[i] = 100 * v / total
	}
	return PCAResult{Samples: samples, Scores: &scores, VarPercent: pct}, nil
}
