package lsrna

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// VoomSpan is the lowess span used for the mean-variance trend.
const VoomSpan = 0.5

// VoomTrend holds the per-gene points and the fitted lowess curve of the
// voom mean-variance relationship.
type VoomTrend struct {
	// SX is the average log2 count and SY the square root of the residual
	// standard deviation, one entry per gene.
	SX, SY []float64
	// CurveX is sorted; CurveY is the lowess fit at CurveX.
	CurveX, CurveY []float64
}

// VoomData is log2-CPM expression with per-observation precision weights.
type VoomData struct {
	Genes   []string
	Samples []string
	E       *mat.Dense
	Weights *mat.Dense
	LibSize []float64
	Trend   VoomTrend
}

// VoomLogCPM returns log2((count + 0.5) / (lib + 1) * 1e6).
func VoomLogCPM(counts mat.Matrix, lib []float64) *mat.Dense {
	r, c := counts.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return math.Log2((v + 0.5) / (lib[j] + 1) * 1e6)
	}, counts)
	return out
}

// Voom transforms counts to log2-CPM and estimates precision weights from
// the lowess trend of residual standard deviation against mean log count.
func Voom(cs CountSet, d Design) (VoomData, error) {
	if e := cs.Validate(); e != nil {
		return VoomData{}, fmt.Errorf("Voom: %w", e)
	}
	r, c := cs.Matrix.Dims()
	if dr, _ := d.Matrix.Dims(); dr != c {
		return VoomData{}, fmt.Errorf("Voom: design has %v rows for %v samples; %w", dr, c, ErrShape)
	}
	lib := cs.EffLibSize()
	y := VoomLogCPM(cs.Matrix.Data, lib)

	fit, e := LmFit(y, nil, d)
	if e != nil {
		return VoomData{}, fmt.Errorf("Voom: %w", e)
	}

	var meanLogLib float64
	for _, l := range lib {
		meanLogLib += math.Log2(l + 1)
	}
	meanLogLib /= float64(c)

	sx := make([]float64, 0, r)
	sy := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		if floats.Sum(cs.Matrix.Data.RawRowView(i)) == 0 {
			continue
		}
		sx = append(sx, fit.Amean[i]+meanLogLib-math.Log2(1e6))
		sy = append(sy, math.Sqrt(fit.Sigma[i]))
	}
	if len(sx) < 2 {
		return VoomData{}, fmt.Errorf("Voom: %v genes with counts; %w", len(sx), ErrInsufficientData)
	}
	lx, ly := LowessCurve(sx, sy, VoomSpan)
	trend := NewInterpolator(lx, ly)

	var fitted mat.Dense
	fitted.Mul(fit.Coefficients, d.Matrix.T())
	w := mat.NewDense(r, c, nil)
	w.Apply(func(i, j int, v float64) float64 {
		logCount := v + math.Log2(lib[j]+1) - math.Log2(1e6)
		s := trend.At(logCount)
		return 1 / (s * s * s * s)
	}, &fitted)

	return VoomData{
		Genes:   cs.Matrix.Genes,
		Samples: cs.Matrix.Samples,
		E:       y,
		Weights: w,
		LibSize: lib,
		Trend:   VoomTrend{SX: sx, SY: sy, CurveX: lx, CurveY: ly},
	}, nil
}
