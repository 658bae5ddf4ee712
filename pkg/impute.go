package lsrna

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// A gene is kept only when strictly more than this fraction of its values
// were observed.
const MinObservedFrac = 0.5

type ImputeReport struct {
	Imputed     int
	Dropped     []string
	ColumnMeans []float64
}

// ColumnMeans returns the mean of the observed (non-NaN) entries of each
// sample column.
func ColumnMeans(m ExprMatrix) ([]float64, error) {
	r, c := m.Dims()
	means := make([]float64, c)
	obs := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		obs = obs[:0]
		for i := 0; i < r; i++ {
			if v := m.Data.At(i, j); !math.IsNaN(v) {
				obs = append(obs, v)
			}
		}
		mean, e := stats.Mean(obs)
		if e != nil {
			return nil, fmt.Errorf("ColumnMeans: sample %v has no observed values; %w", m.Samples[j], ErrInsufficientData)
		}
		means[j] = mean
	}
	return means, nil
}

func observedFrac(row []float64) float64 {
	n := 0
	for _, v := range row {
		if !math.IsNaN(v) {
			n++
		}
	}
	return float64(n) / float64(len(row))
}

// Impute fills missing values with their column mean and drops genes that
// had too many missing values.
func Impute(m ExprMatrix) (ExprMatrix, ImputeReport, error) {
	var rep ImputeReport
	if e := m.Validate(); e != nil {
		return ExprMatrix{}, rep, fmt.Errorf("Impute: %w", e)
	}
	means, e := ColumnMeans(m)
	if e != nil {
		return ExprMatrix{}, rep, fmt.Errorf("Impute: %w", e)
	}
	rep.ColumnMeans = means

	r, c := m.Dims()
	keep := make([]bool, r)
	filled := mat.DenseCopyOf(m.Data)
	for i := 0; i < r; i++ {
		row := filled.RawRowView(i)
		keep[i] = observedFrac(row) > MinObservedFrac
		if !keep[i] {
			rep.Dropped = append(rep.Dropped, m.Genes[i])
			continue
		}
		for j := 0; j < c; j++ {
			if math.IsNaN(row[j]) {
				row[j] = means[j]
				rep.Imputed++
			}
		}
	}

	out := ExprMatrix{Genes: m.Genes, Samples: m.Samples, Data: filled}.SubsetRows(keep)
	if out.Data == nil {
		return ExprMatrix{}, rep, fmt.Errorf("Impute: all %v genes dropped; %w", r, ErrInsufficientData)
	}
	return out, rep, nil
}
