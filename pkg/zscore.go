package lsrna

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Zscores centres fs on its mean and divides by the sample standard
// deviation. A constant vector maps to zeros.
func Zscores(fs stats.Float64Data) ([]float64, error) {
	mean, e := stats.Mean(fs)
	if e != nil {
		return nil, e
	}
	sd, e := stats.StandardDeviationSample(fs)
	if e != nil {
		return nil, e
	}
	out := make([]float64, 0, len(fs))
	for _, f := range fs {
		if sd == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (f-mean)/sd)
	}
	return out, nil
}

// RowScale z-scores every row of m.
func RowScale(m mat.Matrix) (*mat.Dense, error) {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		zs, e := Zscores(row)
		if e != nil {
			return nil, e
		}
		out.SetRow(i, zs)
	}
	return out, nil
}
