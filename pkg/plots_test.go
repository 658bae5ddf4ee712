package lsrna

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPlotVolcano(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volcano.png")
	require.NoError(t, PlotVolcano(path, sampleDETable(), DefaultExportPolicy()))
	assert.FileExists(t, path)

	assert.ErrorIs(t, PlotVolcano(filepath.Join(dir, "empty.png"), DETable{}, DefaultExportPolicy()), ErrInsufficientData)
}

func TestVolcanoClass(t *testing.T) {
	pol := DefaultExportPolicy()
	assert.Equal(t, "Up", VolcanoClass(DERow{LogFC: 0.2, AdjP: 0.01}, pol))
	assert.Equal(t, "Down", VolcanoClass(DERow{LogFC: -3, AdjP: 0.01}, pol))
	assert.Equal(t, "NS", VolcanoClass(DERow{LogFC: 5, AdjP: 0.2}, pol))
	assert.InDelta(t, 2, NegLog10(0.01), 1e-12)
	assert.Greater(t, NegLog10(0), 300.0)
}

func TestPlotEnrichment(t *testing.T) {
	dir := t.TempDir()
	rows := []EnrichRow{
		{ID: "GO:1", Description: "a rather long description that will certainly be cut short on the axis", AdjP: 0.001, NES: 2},
		{ID: "GO:2", AdjP: 0.01, NES: -1.5},
	}
	require.NoError(t, PlotORABar(filepath.Join(dir, "ora.png"), EnrichTable{Kind: KindORA, Rows: rows}, 1))
	require.NoError(t, PlotGSEABar(filepath.Join(dir, "gsea.png"), EnrichTable{Kind: KindGSEA, Rows: rows}))
	assert.ErrorIs(t, PlotGSEABar(filepath.Join(dir, "none.png"), EnrichTable{}), ErrInsufficientData)

	assert.Len(t, barLabel(rows[0]), maxBarLabel)
	assert.Equal(t, "GO:2", barLabel(rows[1]))

	rl := linearRanking(60)
	require.NoError(t, PlotRunningScore(filepath.Join(dir, "running.png"), rl, GeneSet{ID: "S", Genes: geneRange("G", 0, 10)}))
	assert.ErrorIs(t, PlotRunningScore(filepath.Join(dir, "x.png"), rl, GeneSet{ID: "S", Genes: []string{"NOPE"}}), ErrInsufficientData)
}

func TestPlotSamples(t *testing.T) {
	dir := t.TempDir()
	groups := []Condition{Healthy, Healthy, LS, LS}
	samples := []string{"HC1", "HC2", "LS1", "LS2"}
	coords := mat.NewDense(4, 2, []float64{0, 0, 1, 0, 5, 5, 6, 4})
	require.NoError(t, PlotSamples2D(filepath.Join(dir, "s.png"), "x", "a", "b", coords, samples, groups))

	one := PCAResult{Samples: samples, Scores: mat.NewDense(4, 1, nil), VarPercent: []float64{100}}
	assert.ErrorIs(t, PlotPCA(filepath.Join(dir, "pca.png"), one, groups), ErrInsufficientData)

	logcpm := mat.NewDense(3, 4, []float64{1, 2, 3, 4, 2, 3, 4, 5, 0, 1, 0, 1})
	require.NoError(t, PlotLibraryBoxes(filepath.Join(dir, "box.png"), "boxes", logcpm, samples, groups))
}
