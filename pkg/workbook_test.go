package lsrna

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDETable() DETable {
	return DETable{Contrast: "LS-Healthy", Rows: []DERow{
		{Gene: "COL1A1", LogFC: 2.5, AveExpr: 9.1, T: 8.2, P: 1e-6, AdjP: 0.0004},
		{Gene: "MMP1", LogFC: -1.2, AveExpr: 5.5, T: -6.1, P: 2e-5, AdjP: 0.004},
		{Gene: "SFRP2", LogFC: 0.4, AveExpr: 7.0, T: 3.3, P: 0.001, AdjP: 0.03},
		{Gene: "ACTB", LogFC: 0.01, AveExpr: 12.0, T: 0.1, P: 0.9, AdjP: 0.95},
	}}
}

func assertRowsEqual(t *testing.T, want, got []DERow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Gene, got[i].Gene)
		assert.InDeltaSlice(t,
			[]float64{want[i].LogFC, want[i].AveExpr, want[i].T, want[i].P, want[i].AdjP},
			[]float64{got[i].LogFC, got[i].AveExpr, got[i].T, got[i].P, got[i].AdjP},
			1e-12)
	}
}

func TestGeneListWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deg.xlsx")
	tab := sampleDETable()
	gl, e := WriteGeneListWorkbook(path, tab, DefaultExportPolicy(), "run-1")
	require.NoError(t, e)
	assert.Len(t, gl.All, 3)
	assert.Len(t, gl.Up, 2)
	assert.Len(t, gl.Down, 1)

	wb, e := ReadGeneListWorkbook(path)
	require.NoError(t, e)
	assertRowsEqual(t, gl.All, wb.All)
	assertRowsEqual(t, gl.Up, wb.Up)
	assertRowsEqual(t, gl.Down, wb.Down)
	assert.Equal(t, len(wb.All), len(wb.Up)+len(wb.Down))

	assert.Equal(t, "LS-Healthy", wb.Params["contrast"])
	assert.Equal(t, "0.05", wb.Params["adj_p_cutoff"])
	assert.Equal(t, "0", wb.Params["min_abs_log_fc"])
	assert.Equal(t, "4", wb.Params["tested_genes"])
	assert.Equal(t, "3", wb.Params["n_all"])
	assert.Equal(t, "run-1", wb.Params["run_id"])
	assert.Len(t, wb.Params, len(paramOrder))
}

func TestGeneListWorkbookFoldChangeFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deg.xlsx")
	pol := DefaultExportPolicy()
	pol.MinAbsLogFC = 1
	gl, e := WriteGeneListWorkbook(path, sampleDETable(), pol, "run-2")
	require.NoError(t, e)
	assert.Equal(t, []string{"COL1A1", "MMP1"}, DETable{Rows: gl.All}.Genes())

	wb, e := ReadGeneListWorkbook(path)
	require.NoError(t, e)
	assert.Len(t, wb.All, 2)
	assert.Equal(t, "1", wb.Params["min_abs_log_fc"])
}

func TestGeneListWorkbookEmptyLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deg.xlsx")
	tab := DETable{Contrast: "LS-Healthy", Rows: []DERow{{Gene: "A", P: 0.5, AdjP: 0.9}}}
	gl, e := WriteGeneListWorkbook(path, tab, DefaultExportPolicy(), "")
	require.NoError(t, e)
	assert.Empty(t, gl.All)

	wb, e := ReadGeneListWorkbook(path)
	require.NoError(t, e)
	assert.Empty(t, wb.All)
	assert.Empty(t, wb.Up)
	assert.Empty(t, wb.Down)
}

func TestGeneListWorkbookRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deg.xlsx")
	dup := DETable{Rows: []DERow{{Gene: "A", P: 0.1, AdjP: 0.1}, {Gene: "A", P: 0.2, AdjP: 0.2}}}
	_, e := WriteGeneListWorkbook(path, dup, DefaultExportPolicy(), "")
	assert.ErrorIs(t, e, ErrDuplicateID)

	pol := DefaultExportPolicy()
	pol.AdjPCutoff = 0
	_, e = WriteGeneListWorkbook(path, sampleDETable(), pol, "")
	assert.ErrorIs(t, e, ErrParse)
}

func TestPartition(t *testing.T) {
	gl := Partition(sampleDETable(), DefaultExportPolicy())
	assert.Equal(t, []string{"COL1A1", "MMP1", "SFRP2"}, DETable{Rows: gl.All}.Genes())
	assert.Equal(t, []string{"COL1A1", "SFRP2"}, DETable{Rows: gl.Up}.Genes())
	assert.Equal(t, []string{"MMP1"}, DETable{Rows: gl.Down}.Genes())
}

func TestSortByP(t *testing.T) {
	tab := DETable{Rows: []DERow{{Gene: "b", P: 0.1}, {Gene: "a", P: 0.1}, {Gene: "c", P: 0.01}}}
	tab.SortByP()
	assert.Equal(t, []string{"c", "a", "b"}, tab.Genes())
}
