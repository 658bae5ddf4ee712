package lsrna

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

type DERow struct {
	Gene    string
	LogFC   float64
	AveExpr float64
	T       float64
	P       float64
	AdjP    float64
}

// DETable is the differential expression result for one contrast.
type DETable struct {
	Contrast string
	Rows     []DERow
}

func (t DETable) Validate() error {
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		if _, ok := seen[r.Gene]; ok {
			return fmt.Errorf("DETable.Validate: gene %q; %w", r.Gene, ErrDuplicateID)
		}
		seen[r.Gene] = struct{}{}
		if !allFinite(r.LogFC, r.AveExpr, r.T) || r.P < 0 || r.P > 1 || r.AdjP < 0 || r.AdjP > 1 {
			return fmt.Errorf("DETable.Validate: gene %q row %+v; %w", r.Gene, r, ErrInsufficientData)
		}
	}
	return nil
}

// SortByP orders rows by ascending p-value, breaking ties by gene id.
func (t DETable) SortByP() {
	slices.SortStableFunc(t.Rows, func(a, b DERow) int {
		if c := cmp.Compare(a.P, b.P); c != 0 {
			return c
		}
		return cmp.Compare(a.Gene, b.Gene)
	})
}

func (t DETable) Genes() []string {
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r.Gene)
	}
	return out
}

// ExportPolicy selects the genes written to the gene list workbook.
type ExportPolicy struct {
	AdjPCutoff float64 `yaml:"adj_p_cutoff"`
	// MinAbsLogFC is an optional fold change filter; zero disables it.
	MinAbsLogFC float64 `yaml:"min_abs_log_fc"`
	// VolcanoLogFC and VolcanoAdjP only place the guide lines on the
	// volcano plot.
	VolcanoLogFC float64 `yaml:"volcano_log_fc"`
	VolcanoAdjP  float64 `yaml:"volcano_adj_p"`
}

func DefaultExportPolicy() ExportPolicy {
	return ExportPolicy{
		AdjPCutoff:   0.05,
		MinAbsLogFC:  0,
		VolcanoLogFC: 1.5,
		VolcanoAdjP:  0.05,
	}
}

func (p ExportPolicy) Validate() error {
	if !(p.AdjPCutoff > 0 && p.AdjPCutoff <= 1) || p.MinAbsLogFC < 0 || p.VolcanoLogFC < 0 || !(p.VolcanoAdjP > 0 && p.VolcanoAdjP <= 1) {
		return fmt.Errorf("ExportPolicy.Validate: %+v; %w", p, ErrParse)
	}
	return nil
}

func (p ExportPolicy) Significant(r DERow) bool {
	return r.AdjP < p.AdjPCutoff && math.Abs(r.LogFC) >= p.MinAbsLogFC
}

// GeneLists splits the significant genes of a table by direction.
type GeneLists struct {
	All  []DERow
	Up   []DERow
	Down []DERow
}

// Partition keeps significant rows in table order; positive fold changes go
// to Up and the rest to Down.
func Partition(t DETable, p ExportPolicy) GeneLists {
	var gl GeneLists
	for _, r := range t.Rows {
		if !p.Significant(r) {
			continue
		}
		gl.All = append(gl.All, r)
		if r.LogFC > 0 {
			gl.Up = append(gl.Up, r)
		} else {
			gl.Down = append(gl.Down, r)
		}
	}
	return gl
}
