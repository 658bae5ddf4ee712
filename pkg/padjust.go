package lsrna

import (
	"math"
)

// BH returns Benjamini-Hochberg adjusted p-values in input order.
func BH(ps []float64) []float64 {
	n := len(ps)
	if n == 0 {
		return nil
	}
	idx := Order(ps)
	adj := make([]float64, n)
	cummin := 1.0
	for i := n - 1; i >= 0; i-- {
		o := idx[i]
		v := ps[o] * float64(n) / float64(i+1)
		if v < cummin {
			cummin = v
		}
		adj[o] = cummin
	}
	return adj
}

// StoreyPi0Lambda is the single tuning point used to estimate the share of
// true null hypotheses.
const StoreyPi0Lambda = 0.5

// Pi0 estimates the proportion of true nulls as #{p > lambda} / (m (1-lambda)),
// capped at one.
func Pi0(ps []float64, lambda float64) float64 {
	if len(ps) == 0 {
		return 1
	}
	above := 0
	for _, p := range ps {
		if p > lambda {
			above++
		}
	}
	pi0 := float64(above) / (float64(len(ps)) * (1 - lambda))
	if pi0 <= 0 {
		// Everything below lambda; fall back to BH.
		return 1
	}
	return math.Min(pi0, 1)
}

// QValues returns Storey q-values: pi0-scaled BH adjusted p-values.
func QValues(ps []float64) []float64 {
	pi0 := Pi0(ps, StoreyPi0Lambda)
	q := BH(ps)
	for i := range q {
		q[i] *= pi0
	}
	return q
}
