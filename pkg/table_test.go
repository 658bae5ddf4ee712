package lsrna

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDETable(t *testing.T) {
	var buf bytes.Buffer
	tab := DETable{Rows: []DERow{{Gene: "COL1A1", LogFC: 2.5, AveExpr: 9, T: 8.25, P: 0.001, AdjP: 0.01}}}
	require.NoError(t, WriteDETable(&buf, tab))
	assert.Equal(t, "Gene\tlogFC\tAveExpr\tt\tP.Value\tadj.P.Val\nCOL1A1\t2.5\t9\t8.25\t0.001\t0.01\n", buf.String())
}

func TestWriteEnrichTable(t *testing.T) {
	var buf bytes.Buffer
	ora := EnrichTable{Kind: KindORA, Rows: []EnrichRow{{
		ID: "GO:0030199", Description: "collagen fibril organization", SetSize: 20, Count: 3,
		GeneRatio: "3/16", BgRatio: "20/52", P: 0.001, AdjP: 0.002, Q: 0.0015,
		Genes: []string{"COL1A1", "COL1A2", "COL3A1"},
	}}}
	require.NoError(t, WriteEnrichTable(&buf, ora))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(ORAHeader, "\t"), lines[0])
	assert.Equal(t, "GO:0030199\tcollagen fibril organization\t3/16\t20/52\t20\t3\t0.001\t0.002\t0.0015\tCOL1A1/COL1A2/COL3A1", lines[1])

	buf.Reset()
	gsea := EnrichTable{Kind: KindGSEA, Rows: []EnrichRow{{ID: "HALLMARK_X", SetSize: 40, ES: 0.5, NES: 1.75, P: 0.01, AdjP: 0.04, Genes: []string{"A", "B"}}}}
	require.NoError(t, WriteEnrichTable(&buf, gsea))
	lines = strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, strings.Join(GSEAHeader, "\t"), lines[0])
	assert.Equal(t, "HALLMARK_X\t\t40\t0.5\t1.75\t0.01\t0.04\tA/B", lines[1])
}

func TestWriteEnrichTablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.tsv")
	require.NoError(t, WriteEnrichTablePath(path, EnrichTable{Kind: KindORA}))
	b, e := os.ReadFile(path)
	require.NoError(t, e)
	assert.Equal(t, strings.Join(ORAHeader, "\t")+"\n", string(b))
}
