package lsrna

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/combin"
)

// EnrichRow is one tested gene set. ORA rows leave ES and NES zero; GSEA
// rows leave GeneRatio, BgRatio and Q empty.
type EnrichRow struct {
	ID          string
	Description string
	SetSize     int
	Count       int
	GeneRatio   string
	BgRatio     string
	ES          float64
	NES         float64
	P           float64
	AdjP        float64
	Q           float64
	Genes       []string
}

type EnrichTable struct {
	Kind string
	Rows []EnrichRow
}

const (
	KindORA  = "ORA"
	KindGSEA = "GSEA"
)

// ORAParams are the clusterProfiler enricher defaults.
type ORAParams struct {
	MinSize    int     `yaml:"min_size"`
	MaxSize    int     `yaml:"max_size"`
	PCutoff    float64 `yaml:"p_cutoff"`
	AdjPCutoff float64 `yaml:"adj_p_cutoff"`
	QCutoff    float64 `yaml:"q_cutoff"`
	// Query is "significant" or "all".
	Query string `yaml:"query"`
}

const (
	QuerySignificant = "significant"
	QueryAll         = "all"
)

func DefaultORAParams() ORAParams {
	return ORAParams{
		MinSize:    10,
		MaxSize:    500,
		PCutoff:    0.05,
		AdjPCutoff: 0.05,
		QCutoff:    0.2,
		Query:      QuerySignificant,
	}
}

func (p ORAParams) Validate() error {
	if p.MinSize < 1 || p.MaxSize < p.MinSize {
		return fmt.Errorf("ORAParams.Validate: size bounds %v..%v; %w", p.MinSize, p.MaxSize, ErrParse)
	}
	if p.Query != QuerySignificant && p.Query != QueryAll {
		return fmt.Errorf("ORAParams.Validate: query %q; %w", p.Query, ErrParse)
	}
	return nil
}

// ORAQuery returns the query genes and universe for a DE table under the
// query policy.
func ORAQuery(t DETable, p ORAParams, export ExportPolicy) (query, universe []string) {
	universe = t.Genes()
	if p.Query == QueryAll {
		return universe, universe
	}
	for _, r := range t.Rows {
		if export.Significant(r) {
			query = append(query, r.Gene)
		}
	}
	return query, universe
}

// HypergeomUpper returns P(X >= k) for X hypergeometric with m successes in
// a population of n, drawing draws.
func HypergeomUpper(k, m, n, draws int) float64 {
	if k <= 0 {
		return 1
	}
	hi := min(m, draws)
	if k > hi {
		return 0
	}
	logDen := combin.LogGeneralizedBinomial(float64(n), float64(draws))
	terms := make([]float64, 0, hi-k+1)
	maxT := math.Inf(-1)
	for i := k; i <= hi; i++ {
		if draws-i > n-m {
			continue
		}
		t := combin.LogGeneralizedBinomial(float64(m), float64(i)) +
			combin.LogGeneralizedBinomial(float64(n-m), float64(draws-i)) - logDen
		terms = append(terms, t)
		maxT = math.Max(maxT, t)
	}
	if len(terms) == 0 {
		return 0
	}
	var s float64
	for _, t := range terms {
		s += math.Exp(t - maxT)
	}
	return math.Min(1, math.Exp(maxT)*s)
}

// EnrichORA tests every gene set for over-representation of query genes
// relative to universe.
func EnrichORA(query, universe []string, coll GeneSetCollection, p ORAParams) (EnrichTable, error) {
	if e := p.Validate(); e != nil {
		return EnrichTable{}, fmt.Errorf("EnrichORA: %w", e)
	}
	univ := make(map[string]struct{}, len(universe))
	for _, g := range universe {
		univ[g] = struct{}{}
	}
	inQuery := map[string]struct{}{}
	for _, g := range query {
		if _, ok := univ[g]; ok {
			inQuery[g] = struct{}{}
		}
	}
	if len(inQuery) == 0 {
		return EnrichTable{}, fmt.Errorf("EnrichORA: none of %v query genes in the universe; %w", len(query), ErrInsufficientData)
	}

	// Background size counts universe genes annotated by any set.
	annotated := map[string]struct{}{}
	type candidate struct {
		set   GeneSet
		genes []string
		hits  []string
	}
	var cands []candidate
	for _, gs := range coll.Sets {
		var in, hits []string
		for _, g := range gs.Genes {
			if _, ok := univ[g]; !ok {
				continue
			}
			in = append(in, g)
			annotated[g] = struct{}{}
			if _, ok := inQuery[g]; ok {
				hits = append(hits, g)
			}
		}
		if len(in) < p.MinSize || len(in) > p.MaxSize {
			continue
		}
		cands = append(cands, candidate{gs, in, hits})
	}
	var nq int
	for g := range inQuery {
		if _, ok := annotated[g]; ok {
			nq++
		}
	}
	if nq == 0 || len(cands) == 0 {
		return EnrichTable{}, fmt.Errorf("EnrichORA: %v annotated query genes, %v sets in size range; %w", nq, len(cands), ErrInsufficientData)
	}
	n := len(annotated)

	var rows []EnrichRow
	for _, c := range cands {
		if len(c.hits) == 0 {
			continue
		}
		slices.Sort(c.hits)
		rows = append(rows, EnrichRow{
			ID:          c.set.ID,
			Description: c.set.Description,
			SetSize:     len(c.genes),
			Count:       len(c.hits),
			GeneRatio:   fmt.Sprintf("%d/%d", len(c.hits), nq),
			BgRatio:     fmt.Sprintf("%d/%d", len(c.genes), n),
			P:           HypergeomUpper(len(c.hits), len(c.genes), n, nq),
			Genes:       c.hits,
		})
	}
	ps := make([]float64, len(rows))
	for i, r := range rows {
		ps[i] = r.P
	}
	adj := BH(ps)
	qs := QValues(ps)
	kept := rows[:0]
	for i, r := range rows {
		r.AdjP = adj[i]
		r.Q = qs[i]
		if r.P <= p.PCutoff && r.AdjP <= p.AdjPCutoff && r.Q <= p.QCutoff {
			kept = append(kept, r)
		}
	}
	slices.SortStableFunc(kept, func(a, b EnrichRow) int {
		if c := cmp.Compare(a.P, b.P); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return EnrichTable{Kind: KindORA, Rows: kept}, nil
}
