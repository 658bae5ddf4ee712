package lsrna

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	SheetAll    = "All"
	SheetUp     = "Up"
	SheetDown   = "Down"
	SheetParams = "Parameters"
)

var DEHeader = []string{"Gene", "logFC", "AveExpr", "t", "P.Value", "adj.P.Val"}

// GeneListWorkbook is the content of the exported gene list workbook.
type GeneListWorkbook struct {
	All    []DERow
	Up     []DERow
	Down   []DERow
	Params map[string]string
}

func deRowCells(r DERow) []any {
	return []any{r.Gene, r.LogFC, r.AveExpr, r.T, r.P, r.AdjP}
}

func writeDESheet(f *excelize.File, sheet string, rows []DERow, header int) error {
	hdr := make([]any, len(DEHeader))
	for i, h := range DEHeader {
		hdr[i] = h
	}
	if e := f.SetSheetRow(sheet, "A1", &hdr); e != nil {
		return e
	}
	if e := f.SetRowStyle(sheet, 1, 1, header); e != nil {
		return e
	}
	for i, r := range rows {
		cell, e := excelize.CoordinatesToCellName(1, i+2)
		if e != nil {
			return e
		}
		cells := deRowCells(r)
		if e := f.SetSheetRow(sheet, cell, &cells); e != nil {
			return e
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// PolicyParams records the thresholds and counts behind a gene list export.
func PolicyParams(t DETable, p ExportPolicy, gl GeneLists, runID string) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return map[string]string{
		"contrast":       t.Contrast,
		"adj_p_cutoff":   f(p.AdjPCutoff),
		"min_abs_log_fc": f(p.MinAbsLogFC),
		"volcano_log_fc": f(p.VolcanoLogFC),
		"volcano_adj_p":  f(p.VolcanoAdjP),
		"tested_genes":   strconv.Itoa(len(t.Rows)),
		"n_all":          strconv.Itoa(len(gl.All)),
		"n_up":           strconv.Itoa(len(gl.Up)),
		"n_down":         strconv.Itoa(len(gl.Down)),
		"run_id":         runID,
	}
}

var paramOrder = []string{"contrast", "adj_p_cutoff", "min_abs_log_fc", "volcano_log_fc", "volcano_adj_p", "tested_genes", "n_all", "n_up", "n_down", "run_id"}

// WriteGeneListWorkbook writes the significant genes of t to an xlsx file
// with All, Up, Down and Parameters sheets.
func WriteGeneListWorkbook(path string, t DETable, p ExportPolicy, runID string) (GeneLists, error) {
	if e := t.Validate(); e != nil {
		return GeneLists{}, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	if e := p.Validate(); e != nil {
		return GeneLists{}, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	gl := Partition(t, p)

	f := excelize.NewFile()
	defer f.Close()

	if e := f.SetSheetName("Sheet1", SheetAll); e != nil {
		return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	for _, s := range []string{SheetUp, SheetDown, SheetParams} {
		if _, e := f.NewSheet(s); e != nil {
			return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
		}
	}
	bold, e := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if e != nil {
		return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}

	for _, s := range []struct {
		name string
		rows []DERow
	}{{SheetAll, gl.All}, {SheetUp, gl.Up}, {SheetDown, gl.Down}} {
		if e := writeDESheet(f, s.name, s.rows, bold); e != nil {
			return gl, fmt.Errorf("WriteGeneListWorkbook: sheet %v: %w", s.name, e)
		}
	}

	params := PolicyParams(t, p, gl, runID)
	hdr := []any{"parameter", "value"}
	if e := f.SetSheetRow(SheetParams, "A1", &hdr); e != nil {
		return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	for i, k := range paramOrder {
		row := []any{k, params[k]}
		if e := f.SetSheetRow(SheetParams, fmt.Sprintf("A%d", i+2), &row); e != nil {
			return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
		}
	}

	if e := f.SetDocProps(&excelize.DocProperties{
		Creator:     "lsrna",
		Title:       "HC vs LS differentially expressed genes",
		Subject:     t.Contrast,
		Identifier:  runID,
		Created:     time.Now().UTC().Format(time.RFC3339),
		Description: fmt.Sprintf("adj.P.Val < %v, |logFC| >= %v", p.AdjPCutoff, p.MinAbsLogFC),
	}); e != nil {
		return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	f.SetActiveSheet(0)
	if e := f.SaveAs(path); e != nil {
		return gl, fmt.Errorf("WriteGeneListWorkbook: %w", e)
	}
	return gl, nil
}

func parseDESheet(f *excelize.File, sheet string) ([]DERow, error) {
	rows, e := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if e != nil {
		return nil, e
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %v has no header; %w", sheet, ErrParse)
	}
	out := make([]DERow, 0, len(rows)-1)
	for _, l := range rows[1:] {
		if len(l) < len(DEHeader) {
			return nil, fmt.Errorf("sheet %v row %v too short; %w", sheet, l, ErrParse)
		}
		r := DERow{Gene: l[0]}
		for i, dst := range []*float64{&r.LogFC, &r.AveExpr, &r.T, &r.P, &r.AdjP} {
			v, e := strconv.ParseFloat(l[i+1], 64)
			if e != nil {
				return nil, fmt.Errorf("sheet %v row %v: %w; %w", sheet, l, e, ErrParse)
			}
			*dst = v
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadGeneListWorkbook reads back a workbook written by
// WriteGeneListWorkbook.
func ReadGeneListWorkbook(path string) (GeneListWorkbook, error) {
	f, e := excelize.OpenFile(path)
	if e != nil {
		return GeneListWorkbook{}, fmt.Errorf("ReadGeneListWorkbook: %w", e)
	}
	defer f.Close()

	var wb GeneListWorkbook
	for _, s := range []struct {
		name string
		dst  *[]DERow
	}{{SheetAll, &wb.All}, {SheetUp, &wb.Up}, {SheetDown, &wb.Down}} {
		rows, e := parseDESheet(f, s.name)
		if e != nil {
			return GeneListWorkbook{}, fmt.Errorf("ReadGeneListWorkbook: %w", e)
		}
		*s.dst = rows
	}

	prows, e := f.GetRows(SheetParams, excelize.Options{RawCellValue: true})
	if e != nil {
		return GeneListWorkbook{}, fmt.Errorf("ReadGeneListWorkbook: %w", e)
	}
	wb.Params = map[string]string{}
	for i, l := range prows {
		if i == 0 || len(l) == 0 {
			continue
		}
		v := ""
		if len(l) > 1 {
			v = l[1]
		}
		wb.Params[l[0]] = v
	}
	return wb, nil
}
