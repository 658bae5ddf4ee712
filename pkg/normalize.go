package lsrna

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// A gene passes the expression filter when at least MinSamples samples
// reach MinCPM counts per million.
const (
	MinCPM     = 1.0
	MinSamples = 3
)

// TMM trimming parameters.
const (
	LogRatioTrim = 0.3
	SumTrim      = 0.05
	ACutoff      = -1e10
)

// CountSet is a filtered expression matrix with per-sample normalisation
// factors.
type CountSet struct {
	Matrix      ExprMatrix
	LibSize     []float64
	NormFactors []float64
	Groups      []Condition
}

// EffLibSize returns LibSize[j] * NormFactors[j].
func (cs CountSet) EffLibSize() []float64 {
	out := make([]float64, len(cs.LibSize))
	for j := range out {
		out[j] = cs.LibSize[j] * cs.NormFactors[j]
	}
	return out
}

func (cs CountSet) Validate() error {
	if e := cs.Matrix.Validate(); e != nil {
		return fmt.Errorf("CountSet.Validate: %w", e)
	}
	_, c := cs.Matrix.Dims()
	if len(cs.LibSize) != c || len(cs.NormFactors) != c || len(cs.Groups) != c {
		return fmt.Errorf("CountSet.Validate: %v samples, %v lib sizes, %v factors, %v groups; %w", c, len(cs.LibSize), len(cs.NormFactors), len(cs.Groups), ErrShape)
	}
	for j, f := range cs.NormFactors {
		if !(f > 0) || !(cs.LibSize[j] > 0) || !allFinite(f, cs.LibSize[j]) {
			return fmt.Errorf("CountSet.Validate: sample %v lib size %v factor %v; %w", cs.Matrix.Samples[j], cs.LibSize[j], f, ErrInsufficientData)
		}
	}
	return nil
}

// CPM returns counts per million relative to libSize.
func CPM(m ExprMatrix, libSize []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return v / libSize[j] * 1e6
	}, m.Data)
	return out
}

// LogCPM returns log2 counts per million using effective library sizes and
// a prior count scaled by relative library size.
func LogCPM(cs CountSet, prior float64) *mat.Dense {
	lib := cs.EffLibSize()
	meanLib := floats.Sum(lib) / float64(len(lib))
	r, c := cs.Matrix.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		p := prior * lib[j] / meanLib
		return math.Log2((v + p) / (lib[j] + 2*p) * 1e6)
	}, cs.Matrix.Data)
	return out
}

// FilterByExpression keeps genes with CPM >= MinCPM in at least MinSamples
// samples.
func FilterByExpression(m ExprMatrix) (ExprMatrix, error) {
	cpm := CPM(m, m.ColSums())
	r, _ := cpm.Dims()
	keep := make([]bool, r)
	for i := range keep {
		n := 0
		for _, v := range cpm.RawRowView(i) {
			if v >= MinCPM {
				n++
			}
		}
		keep[i] = n >= MinSamples
	}
	out := m.SubsetRows(keep)
	if out.Data == nil {
		return ExprMatrix{}, fmt.Errorf("FilterByExpression: no gene reaches %v CPM in %v samples; %w", MinCPM, MinSamples, ErrInsufficientData)
	}
	return out, nil
}

func tmmPair(obs, ref []float64, nO, nR float64) float64 {
	var logR, absE, v []float64
	for i := range obs {
		lr := math.Log2((obs[i] / nO) / (ref[i] / nR))
		ae := (math.Log2(obs[i]/nO) + math.Log2(ref[i]/nR)) / 2
		if !allFinite(lr, ae) || ae <= ACutoff {
			continue
		}
		logR = append(logR, lr)
		absE = append(absE, ae)
		v = append(v, (nO-obs[i])/nO/obs[i]+(nR-ref[i])/nR/ref[i])
	}
	if len(logR) == 0 || floats.Max(absAll(logR)) < 1e-6 {
		return 1
	}

	n := float64(len(logR))
	loL := math.Floor(n*LogRatioTrim) + 1
	hiL := n + 1 - loL
	loS := math.Floor(n*SumTrim) + 1
	hiS := n + 1 - loS

	rL := Rank(logR)
	rS := Rank(absE)
	var num, den float64
	for i := range logR {
		if rL[i] < loL || rL[i] > hiL || rS[i] < loS || rS[i] > hiS {
			continue
		}
		num += logR[i] / v[i]
		den += 1 / v[i]
	}
	f := num / den
	if math.IsNaN(f) {
		f = 0
	}
	return math.Pow(2, f)
}

func absAll(fs []float64) []float64 {
	out := make([]float64, len(fs))
	for i, f := range fs {
		out[i] = math.Abs(f)
	}
	return out
}

// TMMFactors computes trimmed mean of M-values normalisation factors,
// rescaled so that their geometric mean is one.
func TMMFactors(m ExprMatrix) ([]float64, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("TMMFactors: empty matrix; %w", ErrInsufficientData)
	}
	lib := m.ColSums()
	cols := make([][]float64, c)
	for j := range cols {
		if !(lib[j] > 0) {
			return nil, fmt.Errorf("TMMFactors: sample %v has library size %v; %w", m.Samples[j], lib[j], ErrInsufficientData)
		}
		cols[j] = mat.Col(nil, j, m.Data)
	}

	// Rows that are zero everywhere carry no information.
	var nonzero []int
	for i := 0; i < r; i++ {
		for _, v := range m.Data.RawRowView(i) {
			if v > 0 {
				nonzero = append(nonzero, i)
				break
			}
		}
	}
	for j := range cols {
		col := make([]float64, 0, len(nonzero))
		for _, i := range nonzero {
			col = append(col, cols[j][i])
		}
		cols[j] = col
	}

	ref := RefColumn(cols, lib)
	f := make([]float64, c)
	for j := range cols {
		f[j] = tmmPair(cols[j], cols[ref], lib[j], lib[ref])
	}

	var meanLog float64
	for _, v := range f {
		meanLog += math.Log(v)
	}
	g := math.Exp(meanLog / float64(c))
	for j := range f {
		f[j] /= g
	}
	return f, nil
}

// RefColumn returns the column whose upper quartile of count/libsize is
// closest to the mean upper quartile.
func RefColumn(cols [][]float64, lib []float64) int {
	q := make([]float64, len(cols))
	scaled := make([]float64, 0)
	for j, col := range cols {
		scaled = scaled[:0]
		for _, v := range col {
			scaled = append(scaled, v/lib[j])
		}
		q[j] = QuantileR7(scaled, 0.75)
	}
	mean := floats.Sum(q) / float64(len(q))
	best := 0
	for j := range q {
		if math.Abs(q[j]-mean) < math.Abs(q[best]-mean) {
			best = j
		}
	}
	return best
}

// Normalize filters lowly expressed genes and attaches TMM factors.
func Normalize(m ExprMatrix, samples SampleTable) (CountSet, error) {
	if e := samples.Validate(m.Samples); e != nil {
		return CountSet{}, fmt.Errorf("Normalize: %w", e)
	}
	filtered, e := FilterByExpression(m)
	if e != nil {
		return CountSet{}, fmt.Errorf("Normalize: %w", e)
	}
	nf, e := TMMFactors(filtered)
	if e != nil {
		return CountSet{}, fmt.Errorf("Normalize: %w", e)
	}
	cs := CountSet{
		Matrix:      filtered,
		LibSize:     filtered.ColSums(),
		NormFactors: nf,
		Groups:      samples.Conditions(),
	}
	return cs, cs.Validate()
}
