package lsrna

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHypergeomUpper(t *testing.T) {
	assert.InDelta(t, 0.13132094943240455, HypergeomUpper(3, 5, 20, 6), 1e-12)
	assert.InEpsilon(t, 1.0652378031481489e-05, HypergeomUpper(10, 40, 1000, 50), 1e-9)
	assert.Equal(t, 1.0, HypergeomUpper(0, 5, 20, 6))
	assert.Equal(t, 0.0, HypergeomUpper(6, 5, 20, 6))
	assert.InDelta(t, 0.5, HypergeomUpper(1, 1, 2, 1), 1e-12)
}

func geneRange(prefix string, from, to int) []string {
	var out []string
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("%v%03d", prefix, i))
	}
	return out
}

func oraCollection() GeneSetCollection {
	return GeneSetCollection{Name: "GO_BP", Sets: []GeneSet{
		{ID: "GO:A", Description: "collagen fibril organization", Genes: geneRange("G", 0, 20)},
		{ID: "GO:B", Description: "immune response", Genes: geneRange("G", 100, 130)},
		{ID: "GO:C", Description: "too small", Genes: geneRange("G", 150, 152)},
		{ID: "GO:D", Description: "outside universe", Genes: geneRange("X", 0, 20)},
	}}
}

func TestEnrichORA(t *testing.T) {
	universe := geneRange("G", 0, 200)
	query := append(geneRange("G", 0, 15), "G100", "NOT_IN_UNIVERSE")

	res, e := EnrichORA(query, universe, oraCollection(), DefaultORAParams())
	require.NoError(t, e)
	assert.Equal(t, KindORA, res.Kind)
	require.Len(t, res.Rows, 1)

	r := res.Rows[0]
	assert.Equal(t, "GO:A", r.ID)
	assert.Equal(t, 20, r.SetSize)
	assert.Equal(t, 15, r.Count)
	assert.Equal(t, "15/16", r.GeneRatio)
	assert.Equal(t, "20/52", r.BgRatio)
	assert.InDelta(t, HypergeomUpper(15, 20, 52, 16), r.P, 1e-15)
	assert.GreaterOrEqual(t, r.AdjP, r.P)
	assert.LessOrEqual(t, r.Q, r.AdjP)
	assert.Equal(t, geneRange("G", 0, 15), r.Genes)
}

func TestEnrichORASizeBounds(t *testing.T) {
	universe := geneRange("G", 0, 200)
	p := DefaultORAParams()
	p.MinSize = 1
	p.PCutoff, p.AdjPCutoff, p.QCutoff = 1, 1, 1
	res, e := EnrichORA([]string{"G150", "G151", "G000"}, universe, oraCollection(), p)
	require.NoError(t, e)
	ids := map[string]bool{}
	for _, r := range res.Rows {
		ids[r.ID] = true
	}
	assert.True(t, ids["GO:C"])
	assert.True(t, ids["GO:A"])
	assert.False(t, ids["GO:B"], "sets without hits are not reported")
	for i := 1; i < len(res.Rows); i++ {
		assert.LessOrEqual(t, res.Rows[i-1].P, res.Rows[i].P)
	}
}

func TestEnrichORAEmptyQuery(t *testing.T) {
	_, e := EnrichORA(nil, geneRange("G", 0, 200), oraCollection(), DefaultORAParams())
	assert.ErrorIs(t, e, ErrInsufficientData)

	_, e = EnrichORA([]string{"G199"}, geneRange("G", 0, 200), oraCollection(), DefaultORAParams())
	assert.ErrorIs(t, e, ErrInsufficientData)

	bad := DefaultORAParams()
	bad.Query = "some"
	_, e = EnrichORA([]string{"G001"}, geneRange("G", 0, 200), oraCollection(), bad)
	assert.ErrorIs(t, e, ErrParse)
}

func TestORAQuery(t *testing.T) {
	tab := sampleDETable()
	q, u := ORAQuery(tab, DefaultORAParams(), DefaultExportPolicy())
	assert.Equal(t, []string{"COL1A1", "MMP1", "SFRP2"}, q)
	assert.Equal(t, tab.Genes(), u)

	all := DefaultORAParams()
	all.Query = QueryAll
	q, _ = ORAQuery(tab, all, DefaultExportPolicy())
	assert.Equal(t, tab.Genes(), q)
}
