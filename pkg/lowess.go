package lsrna

import (
	"math"
	"slices"
	"sort"
)

// lowestFit computes the locally weighted fitted value at xs using points
// nleft..nright (0-based, inclusive). It reports false when every weight is
// zero.
func lowestFit(x, y []float64, xs float64, nleft, nright int, w []float64, rw []float64) (float64, bool) {
	n := len(x)
	rng := x[n-1] - x[0]
	h := math.Max(xs-x[nleft], x[nright]-xs)
	h9 := 0.999 * h
	h1 := 0.001 * h

	var a float64
	j := nleft
	for ; j < n; j++ {
		w[j] = 0
		r := math.Abs(x[j] - xs)
		if r <= h9 {
			if r <= h1 {
				w[j] = 1
			} else {
				q := r / h
				q = 1 - q*q*q
				w[j] = q * q * q
			}
			if rw != nil {
				w[j] *= rw[j]
			}
			a += w[j]
		} else if x[j] > xs {
			break
		}
	}
	nrt := j - 1
	if a <= 0 {
		return 0, false
	}
	for j := nleft; j <= nrt; j++ {
		w[j] /= a
	}
	if h > 0 {
		a = 0
		for j := nleft; j <= nrt; j++ {
			a += w[j] * x[j]
		}
		b := xs - a
		var c float64
		for j := nleft; j <= nrt; j++ {
			c += w[j] * (x[j] - a) * (x[j] - a)
		}
		if math.Sqrt(c) > 0.001*rng {
			b /= c
			for j := nleft; j <= nrt; j++ {
				w[j] *= b*(x[j]-a) + 1
			}
		}
	}
	var ys float64
	for j := nleft; j <= nrt; j++ {
		ys += w[j] * y[j]
	}
	return ys, true
}

// Lowess smooths y against x (Cleveland 1979) with span f, nsteps
// robustness iterations and interpolation distance delta. x must be sorted
// ascending.
func Lowess(x, y []float64, f float64, nsteps int, delta float64) []float64 {
	n := len(x)
	ys := make([]float64, n)
	if n < 2 {
		copy(ys, y)
		return ys
	}
	ns := max(min(int(f*float64(n)+1e-7), n), 2)
	w := make([]float64, n)
	res := make([]float64, n)
	var rw []float64

	for iter := 1; iter <= nsteps+1; iter++ {
		nleft, nright, last, i := 0, ns-1, -1, 0
		for {
			if nright < n-1 {
				d1 := x[i] - x[nleft]
				d2 := x[nright+1] - x[i]
				if d1 > d2 {
					nleft++
					nright++
					continue
				}
			}
			v, ok := lowestFit(x, y, x[i], nleft, nright, w, rw)
			if ok {
				ys[i] = v
			} else {
				ys[i] = y[i]
			}
			if last < i-1 {
				denom := x[i] - x[last]
				for j := last + 1; j < i; j++ {
					alpha := (x[j] - x[last]) / denom
					ys[j] = alpha*ys[i] + (1-alpha)*ys[last]
				}
			}
			last = i
			cut := x[last] + delta
			for i = last + 1; i < n; i++ {
				if x[i] > cut {
					break
				}
				if x[i] == x[last] {
					ys[i] = ys[last]
					last = i
				}
			}
			i = max(last+1, i-1)
			if last >= n-1 {
				break
			}
		}

		var sc float64
		for i := range res {
			res[i] = y[i] - ys[i]
			sc += math.Abs(res[i])
		}
		sc /= float64(n)
		if iter > nsteps {
			break
		}

		if rw == nil {
			rw = make([]float64, n)
		}
		abs := make([]float64, n)
		for i := range res {
			abs[i] = math.Abs(res[i])
		}
		sorted := slices.Sorted(slices.Values(abs))
		m1 := n / 2
		var cmad float64
		if n%2 == 0 {
			cmad = 3 * (sorted[m1] + sorted[m1-1])
		} else {
			cmad = 6 * sorted[m1]
		}
		if cmad < 1e-7*sc {
			break
		}
		c9, c1 := 0.999*cmad, 0.001*cmad
		for i, r := range abs {
			switch {
			case r <= c1:
				rw[i] = 1
			case r <= c9:
				q := r / cmad
				q = 1 - q*q
				rw[i] = q * q
			default:
				rw[i] = 0
			}
		}
	}
	return ys
}

// Interpolator is a piecewise linear function that is constant beyond its
// end points.
type Interpolator struct {
	X, Y []float64
}

// NewInterpolator sorts the knots by x and averages y over tied x values.
func NewInterpolator(x, y []float64) Interpolator {
	idx := Order(x)
	var in Interpolator
	for k := 0; k < len(idx); {
		end := k + 1
		sum := y[idx[k]]
		for end < len(idx) && x[idx[end]] == x[idx[k]] {
			sum += y[idx[end]]
			end++
		}
		in.X = append(in.X, x[idx[k]])
		in.Y = append(in.Y, sum/float64(end-k))
		k = end
	}
	return in
}

func (in Interpolator) At(v float64) float64 {
	n := len(in.X)
	if n == 0 {
		return math.NaN()
	}
	if v <= in.X[0] {
		return in.Y[0]
	}
	if v >= in.X[n-1] {
		return in.Y[n-1]
	}
	j := sort.SearchFloat64s(in.X, v)
	if in.X[j] == v {
		return in.Y[j]
	}
	t := (v - in.X[j-1]) / (in.X[j] - in.X[j-1])
	return in.Y[j-1] + t*(in.Y[j]-in.Y[j-1])
}

// LowessCurve sorts the points by x, smooths them with span f and three
// robustness steps, and returns the sorted x with the fitted values.
func LowessCurve(x, y []float64, f float64) (xs, fit []float64) {
	idx := Order(x)
	xs = make([]float64, len(x))
	ys := make([]float64, len(y))
	for k, i := range idx {
		xs[k] = x[i]
		ys[k] = y[i]
	}
	delta := 0.0
	if len(xs) > 0 {
		delta = 0.01 * (xs[len(xs)-1] - xs[0])
	}
	return xs, Lowess(xs, ys, f, 3, delta)
}
