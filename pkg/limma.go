package lsrna

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearFit holds per-gene linear model fits.
type LinearFit struct {
	// Coefficients is genes x design columns.
	Coefficients *mat.Dense
	// StdevUnscaled is sqrt(diag((X'WX)^-1)) per gene.
	StdevUnscaled *mat.Dense
	// CovUnscaled holds (X'WX)^-1 for each gene.
	CovUnscaled []*mat.SymDense
	Sigma       []float64
	DfResidual  []float64
	Amean       []float64
}

func wlsGene(x *mat.Dense, y, w []float64) (coef []float64, cov *mat.SymDense, sigma float64, ok bool) {
	n, p := x.Dims()
	xtwx := mat.NewSymDense(p, nil)
	xtwy := mat.NewVecDense(p, nil)
	for a := 0; a < p; a++ {
		var s float64
		for i := 0; i < n; i++ {
			s += x.At(i, a) * w[i] * y[i]
		}
		xtwy.SetVec(a, s)
		for b := a; b < p; b++ {
			var s float64
			for i := 0; i < n; i++ {
				s += x.At(i, a) * w[i] * x.At(i, b)
			}
			xtwx.SetSym(a, b, s)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(xtwx); !ok {
		return nil, nil, 0, false
	}
	var beta mat.VecDense
	if e := chol.SolveVecTo(&beta, xtwy); e != nil {
		return nil, nil, 0, false
	}
	cov = mat.NewSymDense(p, nil)
	if e := chol.InverseTo(cov); e != nil {
		return nil, nil, 0, false
	}
	var rss float64
	for i := 0; i < n; i++ {
		fitted := mat.Dot(x.RowView(i), &beta)
		res := y[i] - fitted
		rss += w[i] * res * res
	}
	df := float64(n - p)
	sigma = math.NaN()
	if df > 0 {
		sigma = math.Sqrt(rss / df)
	}
	return mat.Col(nil, 0, &beta), cov, sigma, true
}

// LmFit fits a weighted least squares model to every row of e. A nil w
// means unit weights.
func LmFit(e *mat.Dense, w *mat.Dense, d Design) (LinearFit, error) {
	r, c := e.Dims()
	n, p := d.Matrix.Dims()
	if n != c {
		return LinearFit{}, fmt.Errorf("LmFit: design has %v rows for %v samples; %w", n, c, ErrShape)
	}
	if w != nil {
		if wr, wc := w.Dims(); wr != r || wc != c {
			return LinearFit{}, fmt.Errorf("LmFit: weights %vx%v, data %vx%v; %w", wr, wc, r, c, ErrShape)
		}
	}
	if c <= p {
		return LinearFit{}, fmt.Errorf("LmFit: %v samples for %v coefficients; %w", c, p, ErrInsufficientData)
	}

	fit := LinearFit{
		Coefficients:  mat.NewDense(r, p, nil),
		StdevUnscaled: mat.NewDense(r, p, nil),
		CovUnscaled:   make([]*mat.SymDense, r),
		Sigma:         make([]float64, r),
		DfResidual:    make([]float64, r),
		Amean:         make([]float64, r),
	}
	ones := make([]float64, c)
	for j := range ones {
		ones[j] = 1
	}
	for i := 0; i < r; i++ {
		y := e.RawRowView(i)
		wi := ones
		if w != nil {
			wi = w.RawRowView(i)
		}
		coef, cov, sigma, ok := wlsGene(d.Matrix, y, wi)
		if !ok {
			return LinearFit{}, fmt.Errorf("LmFit: gene %v: singular design; %w", i, ErrInsufficientData)
		}
		fit.Coefficients.SetRow(i, coef)
		for k := 0; k < p; k++ {
			fit.StdevUnscaled.Set(i, k, math.Sqrt(cov.At(k, k)))
		}
		fit.CovUnscaled[i] = cov
		fit.Sigma[i] = sigma
		fit.DfResidual[i] = float64(c - p)
		mean, _ := stats.Mean(y)
		fit.Amean[i] = mean
	}
	return fit, nil
}

// ContrastFit is a linear fit reduced to a single contrast.
type ContrastFit struct {
	Contrast      Contrast
	Coefficient   []float64
	StdevUnscaled []float64
	Sigma         []float64
	DfResidual    []float64
	Amean         []float64
}

func ContrastsFit(fit LinearFit, con Contrast) (ContrastFit, error) {
	r, p := fit.Coefficients.Dims()
	if len(con.Weights) != p {
		return ContrastFit{}, fmt.Errorf("ContrastsFit: contrast %v has %v weights for %v coefficients; %w", con.Name, len(con.Weights), p, ErrShape)
	}
	cv := mat.NewVecDense(p, con.Weights)
	out := ContrastFit{
		Contrast:      con,
		Coefficient:   make([]float64, r),
		StdevUnscaled: make([]float64, r),
		Sigma:         fit.Sigma,
		DfResidual:    fit.DfResidual,
		Amean:         fit.Amean,
	}
	for i := 0; i < r; i++ {
		out.Coefficient[i] = mat.Dot(fit.Coefficients.RowView(i), cv)
		out.StdevUnscaled[i] = math.Sqrt(mat.Inner(cv, fit.CovUnscaled[i], cv))
	}
	return out, nil
}

func trigamma(x float64) float64 {
	var acc float64
	for x < 10 {
		acc += 1 / (x * x)
		x++
	}
	x2 := 1 / (x * x)
	return acc + 1/x + x2/2 + x2/x*(1.0/6-x2*(1.0/30-x2*(1.0/42-x2/30)))
}

// tetragamma is the second derivative of digamma.
func tetragamma(x float64) float64 {
	var acc float64
	for x < 10 {
		acc -= 2 / (x * x * x)
		x++
	}
	x2 := 1 / (x * x)
	return acc - x2 - x2/x - x2*x2*(0.5-x2*(1.0/6-x2*(1.0/6-x2*3/10)))
}

// trigammaInverse solves trigamma(x) = y by Newton iteration.
func trigammaInverse(y float64) float64 {
	if y > 1e7 {
		return 1 / math.Sqrt(y)
	}
	if y < 1e-6 {
		return 1 / y
	}
	x := 0.5 + 1/y
	for i := 0; i < 50; i++ {
		tri := trigamma(x)
		dif := tri * (1 - tri/y) / tetragamma(x)
		x += dif
		if -dif/x < 1e-8 {
			break
		}
	}
	return x
}

// FitFDist estimates the scale s20 and degrees of freedom d0 of a scaled F
// prior for variances x with df1 degrees of freedom each.
func FitFDist(x, df1 []float64) (s20, d0 float64) {
	var z, d []float64
	for i, v := range x {
		if allFinite(v, df1[i]) && df1[i] > 1e-15 && v > -1e-15 {
			z = append(z, math.Max(v, 0))
			d = append(d, df1[i])
		}
	}
	if len(z) < 2 {
		return math.NaN(), math.NaN()
	}
	m, _ := stats.Median(z)
	if m == 0 {
		m = 1
	}
	e := make([]float64, len(z))
	var meanTri float64
	for i, v := range z {
		v = math.Max(v, 1e-5*m)
		e[i] = math.Log(v) - mathext.Digamma(d[i]/2) + math.Log(d[i]/2)
		meanTri += trigamma(d[i] / 2)
	}
	meanTri /= float64(len(z))
	emean, _ := stats.Mean(e)
	evar, _ := stats.SampleVariance(e)
	evar -= meanTri
	if evar > 0 {
		d0 = 2 * trigammaInverse(evar)
		s20 = math.Exp(emean + mathext.Digamma(d0/2) - math.Log(d0/2))
		return s20, d0
	}
	return math.Exp(emean), math.Inf(1)
}

// ModeratedFit is a contrast fit with empirical Bayes moderated statistics.
type ModeratedFit struct {
	ContrastFit
	S2Prior float64
	DfPrior float64
	S2Post  []float64
	DfTotal []float64
	T       []float64
	P       []float64
}

// tPValue returns the two-sided Student t p-value.
func tPValue(t, df float64) float64 {
	if math.IsInf(df, 1) {
		return 2 * distuv.UnitNormal.CDF(-math.Abs(t))
	}
	return 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(-math.Abs(t))
}

// EBayes squeezes the residual variances towards a common prior and
// computes moderated t statistics.
func EBayes(fit ContrastFit) (ModeratedFit, error) {
	r := len(fit.Coefficient)
	s2 := make([]float64, r)
	var dfPooled float64
	for i, s := range fit.Sigma {
		s2[i] = s * s
		dfPooled += fit.DfResidual[i]
	}
	s20, d0 := FitFDist(s2, fit.DfResidual)
	if math.IsNaN(s20) {
		return ModeratedFit{}, fmt.Errorf("EBayes: %v genes with residual variance; %w", r, ErrInsufficientData)
	}

	out := ModeratedFit{
		ContrastFit: fit,
		S2Prior:     s20,
		DfPrior:     d0,
		S2Post:      make([]float64, r),
		DfTotal:     make([]float64, r),
		T:           make([]float64, r),
		P:           make([]float64, r),
	}
	for i := range s2 {
		df := fit.DfResidual[i]
		if math.IsInf(d0, 1) {
			out.S2Post[i] = s20
		} else {
			out.S2Post[i] = (df*s2[i] + d0*s20) / (df + d0)
		}
		out.DfTotal[i] = math.Min(df+d0, dfPooled)
		out.T[i] = fit.Coefficient[i] / fit.StdevUnscaled[i] / math.Sqrt(out.S2Post[i])
		out.P[i] = tPValue(out.T[i], out.DfTotal[i])
	}
	return out, nil
}

// TopTable collects the moderated statistics into a DE table sorted by
// p-value.
func TopTable(fit ModeratedFit, genes []string) (DETable, error) {
	if len(genes) != len(fit.T) {
		return DETable{}, fmt.Errorf("TopTable: %v genes for %v statistics; %w", len(genes), len(fit.T), ErrShape)
	}
	adj := BH(fit.P)
	rows := make([]DERow, len(genes))
	for i, g := range genes {
		rows[i] = DERow{
			Gene:    g,
			LogFC:   fit.Coefficient[i],
			AveExpr: fit.Amean[i],
			T:       fit.T[i],
			P:       fit.P[i],
			AdjP:    adj[i],
		}
	}
	t := DETable{Contrast: fit.Contrast.Name, Rows: rows}
	t.SortByP()
	return t, t.Validate()
}

// DifferentialExpression runs voom, the weighted linear fit, the contrast
// and empirical Bayes moderation on cs.
func DifferentialExpression(cs CountSet, samples SampleTable) (DETable, VoomData, error) {
	d, con := BuildDesign(samples)
	v, e := Voom(cs, d)
	if e != nil {
		return DETable{}, VoomData{}, fmt.Errorf("DifferentialExpression: %w", e)
	}
	fit, e := LmFit(v.E, v.Weights, d)
	if e != nil {
		return DETable{}, v, fmt.Errorf("DifferentialExpression: %w", e)
	}
	cf, e := ContrastsFit(fit, con)
	if e != nil {
		return DETable{}, v, fmt.Errorf("DifferentialExpression: %w", e)
	}
	mf, e := EBayes(cf)
	if e != nil {
		return DETable{}, v, fmt.Errorf("DifferentialExpression: %w", e)
	}
	t, e := TopTable(mf, v.Genes)
	if e != nil {
		return DETable{}, v, fmt.Errorf("DifferentialExpression: %w", e)
	}
	return t, v, nil
}
