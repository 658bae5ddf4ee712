package lsrna

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMatrixCSV(t *testing.T, path string, m ExprMatrix) {
	t.Helper()
	var b strings.Builder
	b.WriteString("gene," + strings.Join(m.Samples, ",") + "\n")
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		b.WriteString(m.Genes[i])
		for _, v := range m.Data.RawRowView(i) {
			fmt.Fprintf(&b, ",%v", v)
		}
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func writeGMT(t *testing.T, path string, sets ...GeneSet) {
	t.Helper()
	var b strings.Builder
	for _, s := range sets {
		fmt.Fprintf(&b, "%v\t%v\t%v\n", s.ID, s.Description, strings.Join(s.Genes, "\t"))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func testRunConfig(t *testing.T) *Config {
	t.Helper()
	return studyRunConfig(t, synthStudy{Genes: 200, NH: 5, NL: 5, NEff: 20, Fold: 4, Seed: 5})
}

func studyRunConfig(t *testing.T, study synthStudy) *Config {
	t.Helper()
	dir := t.TempDir()
	m, _ := study.build(t)
	writeMatrixCSV(t, filepath.Join(dir, "counts.csv"), m)

	data := filepath.Join(dir, "ref")
	require.NoError(t, os.MkdirAll(data, 0755))
	writeGMT(t, filepath.Join(data, "go.gmt"),
		GeneSet{ID: "GO:0000001", Description: "planted up", Genes: geneRange("GENE", 0, 20)},
		GeneSet{ID: "GO:0000002", Description: "planted down", Genes: geneRange("GENE", 20, 40)},
		GeneSet{ID: "GO:0000003", Description: "background", Genes: geneRange("GENE", 100, 160)},
	)
	writeGMT(t, filepath.Join(data, "h.gmt"),
		GeneSet{ID: "HALLMARK_UP", Description: "up", Genes: geneRange("GENE", 0, 20)},
		GeneSet{ID: "HALLMARK_DOWN", Description: "down", Genes: geneRange("GENE", 20, 40)},
		GeneSet{ID: "HALLMARK_NULL", Description: "null", Genes: geneRange("GENE", 100, 140)},
	)

	cfg := DefaultConfig()
	cfg.Input = filepath.Join(dir, "counts.csv")
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.DataDir = data
	cfg.GeneSets.GO = "go.gmt"
	cfg.GeneSets.Hallmark = "h.gmt"
	cfg.TSNE.Iterations = 200
	cfg.GSEA.Permutations = 500
	return cfg
}

func TestRunExecute(t *testing.T) {
	cfg := testRunConfig(t)
	run := NewRun(*cfg)
	rec, e := run.Execute(context.Background())
	require.NoError(t, e)

	assert.Equal(t, run.ID, rec.RunID)
	assert.Equal(t, 10, rec.Samples)
	assert.Equal(t, 5, rec.Healthy)
	assert.Equal(t, 5, rec.LS)
	assert.Equal(t, 200, rec.GenesInput)
	assert.Equal(t, rec.Significant, rec.Up+rec.Down)
	assert.GreaterOrEqual(t, rec.Up, 15)
	assert.GreaterOrEqual(t, rec.Down, 15)
	assert.GreaterOrEqual(t, rec.GOTerms, 2)
	assert.Equal(t, StatusDone, rec.GOStatus)
	assert.Equal(t, StatusDone, rec.GSEAStatus)

	for _, f := range []string{
		FileLibraryRaw, FileLibraryTMM, FilePCA, FileTSNE, FileVoomTrend,
		FileVolcano, FileHeatmap, FileDendrogram, FileWorkbook, FileDETable,
		FileGOTable, FileGOBar, FileGSEATable, FileRunRecord,
	} {
		assert.FileExists(t, filepath.Join(cfg.OutDir, f))
	}
	for _, f := range rec.Outputs {
		assert.FileExists(t, filepath.Join(cfg.OutDir, f))
	}

	wb, e := ReadGeneListWorkbook(filepath.Join(cfg.OutDir, FileWorkbook))
	require.NoError(t, e)
	assert.Len(t, wb.All, rec.Significant)
	assert.Equal(t, run.ID, wb.Params["run_id"])

	back, e := ReadRunRecord(filepath.Join(cfg.OutDir, FileRunRecord))
	require.NoError(t, e)
	assert.Equal(t, rec, back)
}

func TestRunExecuteSkipsMissingGeneSets(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.GeneSets.GO = ""
	cfg.GeneSets.Hallmark = ""
	rec, e := NewRun(*cfg).Execute(context.Background())
	require.NoError(t, e)
	assert.Zero(t, rec.GOTerms)
	assert.Equal(t, StatusSkipped, rec.GOStatus)
	assert.Equal(t, StatusSkipped, rec.GSEAStatus)
	assert.NoFileExists(t, filepath.Join(cfg.OutDir, FileGOTable))
	assert.NoFileExists(t, filepath.Join(cfg.OutDir, FileGSEATable))
	assert.FileExists(t, filepath.Join(cfg.OutDir, FileWorkbook))
}

func TestRunExecuteNoSignificantGenes(t *testing.T) {
	cfg := studyRunConfig(t, synthStudy{Genes: 200, NH: 5, NL: 5, NEff: 0, Fold: 4, Seed: 11})
	// No null gene moves a thousandfold, so the export lists stay empty.
	cfg.Export.MinAbsLogFC = 10
	rec, e := NewRun(*cfg).Execute(context.Background())
	require.NoError(t, e)

	assert.Zero(t, rec.Significant)
	assert.Zero(t, rec.GOTerms)
	assert.Equal(t, StatusInsufficient, rec.GOStatus)
	assert.Equal(t, StatusDone, rec.GSEAStatus)
	assert.NoFileExists(t, filepath.Join(cfg.OutDir, FileGOTable))
	assert.NoFileExists(t, filepath.Join(cfg.OutDir, FileHeatmap))
	assert.FileExists(t, filepath.Join(cfg.OutDir, FileGSEATable))
	assert.FileExists(t, filepath.Join(cfg.OutDir, FileWorkbook))

	back, e := ReadRunRecord(filepath.Join(cfg.OutDir, FileRunRecord))
	require.NoError(t, e)
	assert.Equal(t, StatusInsufficient, back.GOStatus)
	assert.Equal(t, rec, back)
}

func TestRunExecuteBadGeneSetSource(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.GeneSets.GO = "nope.gmt"
	_, e := NewRun(*cfg).Execute(context.Background())
	assert.Error(t, e)
}

func TestRunLabelsFromSheet(t *testing.T) {
	cfg := testRunConfig(t)
	sheet := filepath.Join(t.TempDir(), "sheet.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("sample,condition\nHC1,LS\nHC2,Healthy\n"), 0644))
	cfg.SampleSheet = sheet
	tab, e := NewRun(*cfg).Labels([]string{"HC1", "HC2"})
	require.NoError(t, e)
	assert.Equal(t, []Condition{LS, Healthy}, tab.Conditions())

	_, e = NewRun(*cfg).Labels([]string{"HC1", "HC3"})
	assert.ErrorIs(t, e, ErrUnmatchedSample)
}

func TestRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "lsrna "+Version+"\n", out.String())

	cfg := testRunConfig(t)
	cmd = NewRootCmd()
	out.Reset()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"labels", "--input", cfg.Input, "--prefix", "LS", "--log-level", "error"})
	require.NoError(t, cmd.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "HC1\tLS", lines[0])
	assert.Equal(t, "LS1\tHealthy", lines[5])
}

func TestRootCmdRejectsBadLevel(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"version", "--log-level", "loud"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
