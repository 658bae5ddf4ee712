package lsrna

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"
)

type GSEAParams struct {
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	Permutations int     `yaml:"permutations"`
	Seed         uint64  `yaml:"seed"`
	AdjPCutoff   float64 `yaml:"adj_p_cutoff"`
	Top          int     `yaml:"top"`
}

func DefaultGSEAParams() GSEAParams {
	return GSEAParams{
		MinSize:      15,
		MaxSize:      500,
		Permutations: 10000,
		Seed:         42,
		AdjPCutoff:   0.05,
		Top:          10,
	}
}

func (p GSEAParams) Validate() error {
	if p.MinSize < 1 || p.MaxSize < p.MinSize || p.Permutations < 1 || p.Top < 1 {
		return fmt.Errorf("GSEAParams.Validate: %+v; %w", p, ErrParse)
	}
	return nil
}

// RankedList is a gene ranking in decreasing order of its statistic.
type RankedList struct {
	Genes []string
	Stats []float64
}

// RankByLogFC ranks every tested gene by log fold change, largest first,
// breaking ties by gene id.
func RankByLogFC(t DETable) RankedList {
	rows := slices.Clone(t.Rows)
	slices.SortFunc(rows, func(a, b DERow) int {
		if c := cmp.Compare(b.LogFC, a.LogFC); c != 0 {
			return c
		}
		return cmp.Compare(a.Gene, b.Gene)
	})
	rl := RankedList{Genes: make([]string, len(rows)), Stats: make([]float64, len(rows))}
	for i, r := range rows {
		rl.Genes[i] = r.Gene
		rl.Stats[i] = r.LogFC
	}
	return rl
}

// SetPositions returns the sorted ranks of the set members present in rl.
func (rl RankedList) SetPositions(gs GeneSet) []int {
	idx := make(map[string]int, len(rl.Genes))
	for i, g := range rl.Genes {
		idx[g] = i
	}
	var pos []int
	for _, g := range gs.Genes {
		if i, ok := idx[g]; ok {
			pos = append(pos, i)
		}
	}
	slices.Sort(pos)
	return slices.Compact(pos)
}

// EnrichmentScore computes the weighted (p = 1) Kolmogorov-Smirnov style
// enrichment score from sorted hit positions. It also returns the hit index
// at which the extreme deviation occurs.
func EnrichmentScore(stats []float64, pos []int) (es float64, peak int) {
	n, k := len(stats), len(pos)
	if k == 0 || k == n {
		return 0, -1
	}
	var nr float64
	for _, p := range pos {
		nr += math.Abs(stats[p])
	}
	miss := 1 / float64(n-k)
	var top, bottom float64
	topAt, bottomAt := -1, -1
	var cum float64
	for i, p := range pos {
		misses := float64(p - i)
		before := cum - misses*miss
		if nr > 0 {
			cum += math.Abs(stats[p]) / nr
		} else {
			cum += 1 / float64(k)
		}
		after := cum - misses*miss
		if after > top {
			top, topAt = after, i
		}
		if before < bottom {
			bottom, bottomAt = before, i
		}
	}
	if top > -bottom {
		return top, topAt
	}
	return bottom, bottomAt
}

// RunningScore returns the running enrichment score at every rank.
func RunningScore(stats []float64, pos []int) []float64 {
	n, k := len(stats), len(pos)
	out := make([]float64, n)
	if k == 0 || k == n {
		return out
	}
	var nr float64
	for _, p := range pos {
		nr += math.Abs(stats[p])
	}
	hit := make(map[int]struct{}, k)
	for _, p := range pos {
		hit[p] = struct{}{}
	}
	var cur float64
	for i := range stats {
		if _, ok := hit[i]; ok {
			if nr > 0 {
				cur += math.Abs(stats[i]) / nr
			} else {
				cur += 1 / float64(k)
			}
		} else {
			cur -= 1 / float64(n-k)
		}
		out[i] = cur
	}
	return out
}

func leadingEdge(rl RankedList, pos []int, es float64, peak int) []string {
	var genes []string
	if peak < 0 {
		return nil
	}
	if es >= 0 {
		for _, p := range pos[:peak+1] {
			genes = append(genes, rl.Genes[p])
		}
	} else {
		for _, p := range pos[peak:] {
			genes = append(genes, rl.Genes[p])
		}
	}
	return genes
}

// samplePositions draws k distinct ranks out of n with a partial
// Fisher-Yates shuffle of perm, which is left permuted.
func samplePositions(r *rand.Rand, perm []int, k int) {
	for i := 0; i < k; i++ {
		j := i + r.Intn(len(perm)-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
}

type gseaSet struct {
	set GeneSet
	pos []int
	es  float64
	le  []string
}

// GSEA runs preranked gene set enrichment with gene-label permutations. The
// result depends only on its inputs and p.Seed.
func GSEA(rl RankedList, coll GeneSetCollection, p GSEAParams) (EnrichTable, error) {
	if e := p.Validate(); e != nil {
		return EnrichTable{}, fmt.Errorf("GSEA: %w", e)
	}
	n := len(rl.Genes)
	var sets []gseaSet
	maxK := 0
	for _, gs := range coll.Sets {
		pos := rl.SetPositions(gs)
		if len(pos) < p.MinSize || len(pos) > p.MaxSize || len(pos) >= n {
			continue
		}
		es, peak := EnrichmentScore(rl.Stats, pos)
		sets = append(sets, gseaSet{set: gs, pos: pos, es: es, le: leadingEdge(rl, pos, es, peak)})
		maxK = max(maxK, len(pos))
	}
	if len(sets) == 0 {
		return EnrichTable{}, fmt.Errorf("GSEA: no gene set of size %v..%v among %v ranked genes; %w", p.MinSize, p.MaxSize, n, ErrInsufficientData)
	}

	type counts struct {
		leEs, geEs, leZero, geZero int
		leZeroSum, geZeroSum       float64
	}
	cs := make([]counts, len(sets))
	r := rand.New(rand.NewSource(p.Seed))
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	buf := make([]int, maxK)
	for it := 0; it < p.Permutations; it++ {
		samplePositions(r, perm, maxK)
		for si, s := range sets {
			k := len(s.pos)
			rnd := buf[:k]
			copy(rnd, perm[:k])
			slices.Sort(rnd)
			es, _ := EnrichmentScore(rl.Stats, rnd)
			c := &cs[si]
			if es <= s.es {
				c.leEs++
			}
			if es >= s.es {
				c.geEs++
			}
			if es <= 0 {
				c.leZero++
				c.leZeroSum += es
			}
			if es >= 0 {
				c.geZero++
				c.geZeroSum += es
			}
		}
	}

	rows := make([]EnrichRow, len(sets))
	ps := make([]float64, len(sets))
	for i, s := range sets {
		c := cs[i]
		pv := math.Min(
			float64(1+c.leEs)/float64(1+c.leZero),
			float64(1+c.geEs)/float64(1+c.geZero),
		)
		pv = math.Min(pv, 1)
		nes := math.NaN()
		if s.es > 0 && c.geZero > 0 && c.geZeroSum > 0 {
			nes = s.es / (c.geZeroSum / float64(c.geZero))
		} else if s.es <= 0 && c.leZero > 0 && c.leZeroSum < 0 {
			nes = s.es / math.Abs(c.leZeroSum/float64(c.leZero))
		}
		ps[i] = pv
		rows[i] = EnrichRow{
			ID:          s.set.ID,
			Description: s.set.Description,
			SetSize:     len(s.pos),
			Count:       len(s.le),
			ES:          s.es,
			NES:         nes,
			P:           pv,
			Genes:       s.le,
		}
	}
	adj := BH(ps)
	var kept []EnrichRow
	for i := range rows {
		rows[i].AdjP = adj[i]
		if rows[i].AdjP < p.AdjPCutoff && !math.IsNaN(rows[i].NES) {
			kept = append(kept, rows[i])
		}
	}
	slices.SortStableFunc(kept, func(a, b EnrichRow) int {
		if c := cmp.Compare(b.NES, a.NES); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return EnrichTable{Kind: KindGSEA, Rows: kept}, nil
}

// TopByAbsNES returns up to n rows with the largest |NES|, keeping NES order.
func TopByAbsNES(t EnrichTable, n int) EnrichTable {
	if len(t.Rows) <= n {
		return t
	}
	idx := make([]int, len(t.Rows))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(math.Abs(t.Rows[b].NES), math.Abs(t.Rows[a].NES))
	})
	idx = idx[:n]
	slices.Sort(idx)
	out := EnrichTable{Kind: t.Kind, Rows: make([]EnrichRow, 0, n)}
	for _, i := range idx {
		out.Rows = append(out.Rows, t.Rows[i])
	}
	return out
}
