package lsrna

import (
	"math"
	"slices"
	"sort"
)

// QuantileR7 returns the p-th quantile of fs using linear interpolation
// between order statistics (R's default type 7). fs is not modified.
func QuantileR7(fs []float64, p float64) float64 {
	if len(fs) == 0 {
		return math.NaN()
	}
	sorted := slices.Sorted(slices.Values(fs))
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	if p <= 0 {
		return sorted[0]
	}
	h := float64(len(sorted)-1) * p
	i := int(h)
	return sorted[i] + (h-math.Floor(h))*(sorted[i+1]-sorted[i])
}

// Rank returns 1-based ranks of fs, giving ties the mean of their ranks.
func Rank(fs []float64) []float64 {
	idx := make([]int, len(fs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return fs[idx[a]] < fs[idx[b]]
	})
	ranks := make([]float64, len(fs))
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && fs[idx[end]] == fs[idx[start]] {
			end++
		}
		r := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			ranks[idx[k]] = r
		}
		start = end
	}
	return ranks
}

// Order returns the indices that sort fs ascending. Ties keep input order.
func Order(fs []float64) []int {
	idx := make([]int, len(fs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return fs[idx[a]] < fs[idx[b]]
	})
	return idx
}
