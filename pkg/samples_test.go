package lsrna

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelByPrefix(t *testing.T) {
	samples := []string{"HC1", "LS1", "HC2", "LS2", "LS3", "HC3", "LS4", "HC4", "LS5", "LS6"}
	tab := LabelByPrefix(samples, "HC")
	require.NoError(t, tab.Validate(samples))
	nh, nl := tab.Counts()
	assert.Equal(t, 4, nh)
	assert.Equal(t, 6, nl)
	assert.Equal(t, []Condition{Healthy, LS, Healthy, LS, LS, Healthy, LS, Healthy, LS, LS}, tab.Conditions())
	for i, r := range tab.Records {
		assert.Equal(t, samples[i], r.Sample)
	}
}

func TestLabelByPrefixLiteral(t *testing.T) {
	for _, c := range []struct {
		sample string
		want   Condition
	}{
		{"HC", Healthy},
		{"HC10", Healthy},
		{"HCx", Healthy},
		{"hc5", LS},
		{"Hc5", LS},
		{"XHC1", LS},
		{" HC1", LS},
		{"H1", LS},
		{"", LS},
	} {
		tab := LabelByPrefix([]string{c.sample}, "HC")
		require.Len(t, tab.Records, 1)
		assert.Equal(t, c.want, tab.Records[0].Condition, "%q", c.sample)
	}
}

func TestLabelByPrefixOneCondition(t *testing.T) {
	samples := []string{"LS1", "LS2"}
	tab := LabelByPrefix(samples, "HC")
	assert.ErrorIs(t, tab.Validate(samples), ErrInsufficientData)
}

func TestParseCondition(t *testing.T) {
	for in, want := range map[string]Condition{
		"Healthy": Healthy,
		" hc ":    Healthy,
		"control": Healthy,
		"LS":      LS,
		"disease": LS,
	} {
		c, e := ParseCondition(in)
		require.NoError(t, e, in)
		assert.Equal(t, want, c, in)
	}
	_, e := ParseCondition("tumour")
	assert.ErrorIs(t, e, ErrParse)
}

func TestParseSampleSheet(t *testing.T) {
	in := "sample,condition\nS1,Healthy\nS2,LS\nS3,hc\n"
	sheet, e := ParseSampleSheet(strings.NewReader(in), ',')
	require.NoError(t, e)
	assert.Equal(t, map[string]Condition{"S1": Healthy, "S2": LS, "S3": Healthy}, sheet)

	_, e = ParseSampleSheet(strings.NewReader("S1,Healthy\nS1,LS\n"), ',')
	assert.ErrorIs(t, e, ErrDuplicateID)

	_, e = ParseSampleSheet(strings.NewReader("S1,Healthy\nS2,what\n"), ',')
	assert.ErrorIs(t, e, ErrParse)
}

func TestLabelFromSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.tsv")
	require.NoError(t, os.WriteFile(path, []byte("sample\tcondition\nA\tLS\nB\tHealthy\nC\tLS\n"), 0644))
	sheet, e := LoadSampleSheet(path)
	require.NoError(t, e)

	tab, e := LabelFromSheet([]string{"B", "A", "C"}, sheet)
	require.NoError(t, e)
	assert.Equal(t, []Condition{Healthy, LS, LS}, tab.Conditions())

	_, e = LabelFromSheet([]string{"A", "D"}, sheet)
	assert.ErrorIs(t, e, ErrUnmatchedSample)
	assert.Contains(t, e.Error(), "D")
}

func TestSampleTableValidateOrder(t *testing.T) {
	tab := LabelByPrefix([]string{"HC1", "LS1"}, "HC")
	assert.ErrorIs(t, tab.Validate([]string{"LS1", "HC1"}), ErrShape)
	assert.ErrorIs(t, tab.Validate([]string{"HC1"}), ErrShape)
}

func TestBuildDesign(t *testing.T) {
	tab := LabelByPrefix([]string{"HC1", "LS1", "LS2"}, "HC")
	d, c := BuildDesign(tab)
	assert.Equal(t, []Condition{Healthy, LS}, d.Columns)
	assert.Equal(t, []float64{1, 0}, d.Matrix.RawRowView(0))
	assert.Equal(t, []float64{0, 1}, d.Matrix.RawRowView(2))
	assert.Equal(t, []float64{-1, 1}, c.Weights)
	assert.Equal(t, "LS-Healthy", c.Name)
}
