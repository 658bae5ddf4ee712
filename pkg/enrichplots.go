package lsrna

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// maxBarLabel truncates long term descriptions on bar charts.
const maxBarLabel = 50

func barLabel(r EnrichRow) string {
	s := r.Description
	if s == "" {
		s = r.ID
	}
	if len(s) > maxBarLabel {
		s = s[:maxBarLabel-3] + "..."
	}
	return s
}

// PlotEnrichBar draws a horizontal bar per row, first row on top.
func PlotEnrichBar(path, title, xlab string, rows []EnrichRow, value func(EnrichRow) float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("PlotEnrichBar: no rows; %w", ErrInsufficientData)
	}
	rev := slices.Clone(rows)
	slices.Reverse(rev)
	vals := make(plotter.Values, len(rev))
	names := make([]string, len(rev))
	for i, r := range rev {
		vals[i] = value(r)
		names[i] = barLabel(r)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlab
	b, e := plotter.NewBarChart(vals, vg.Points(12))
	if e != nil {
		return fmt.Errorf("PlotEnrichBar: %w", e)
	}
	b.Horizontal = true
	b.Color = upColor
	b.LineStyle.Width = 0
	p.Add(b)
	p.NominalY(names...)

	h := vg.Length(math.Max(3, float64(len(rows))*0.3+1)) * vg.Inch
	if e := savePlot(p, 8*vg.Inch, h, path); e != nil {
		return fmt.Errorf("PlotEnrichBar: %w", e)
	}
	return nil
}

// PlotORABar shows up to n terms by adjusted p-value.
func PlotORABar(path string, t EnrichTable, n int) error {
	rows := slices.Clone(t.Rows)
	slices.SortStableFunc(rows, func(a, b EnrichRow) int {
		return cmp.Compare(a.AdjP, b.AdjP)
	})
	rows = rows[:min(n, len(rows))]
	return PlotEnrichBar(path, "GO over-representation", "-log10 adjusted p", rows, func(r EnrichRow) float64 {
		return NegLog10(r.AdjP)
	})
}

// PlotGSEABar shows the rows of t by NES.
func PlotGSEABar(path string, t EnrichTable) error {
	return PlotEnrichBar(path, "GSEA", "NES", t.Rows, func(r EnrichRow) float64 {
		return r.NES
	})
}

// PlotRunningScore draws the running enrichment score of gs along rl with
// a rug of member positions.
func PlotRunningScore(path string, rl RankedList, gs GeneSet) error {
	pos := rl.SetPositions(gs)
	if len(pos) == 0 {
		return fmt.Errorf("PlotRunningScore: set %v has no ranked genes; %w", gs.ID, ErrInsufficientData)
	}
	rs := RunningScore(rl.Stats, pos)
	xys := make(plotter.XYs, len(rs))
	lo, hi := 0.0, 0.0
	for i, v := range rs {
		xys[i] = plotter.XY{X: float64(i + 1), Y: v}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	p := plot.New()
	p.Title.Text = gs.ID
	p.X.Label.Text = "rank in ordered gene list"
	p.Y.Label.Text = "running enrichment score"

	l, e := plotter.NewLine(xys)
	if e != nil {
		return fmt.Errorf("PlotRunningScore: %w", e)
	}
	l.LineStyle.Color = healthyColor
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)

	zero, e := plotter.NewLine(plotter.XYs{{X: 1, Y: 0}, {X: float64(len(rs)), Y: 0}})
	if e != nil {
		return fmt.Errorf("PlotRunningScore: %w", e)
	}
	dashed(zero)
	p.Add(zero)

	tick := (hi - lo) * 0.08
	if tick == 0 {
		tick = 0.05
	}
	for _, q := range pos {
		r, e := plotter.NewLine(plotter.XYs{{X: float64(q + 1), Y: lo - tick}, {X: float64(q + 1), Y: lo - 2*tick}})
		if e != nil {
			return fmt.Errorf("PlotRunningScore: %w", e)
		}
		r.LineStyle.Width = vg.Points(0.5)
		p.Add(r)
	}

	if e := savePlot(p, 7*vg.Inch, 4*vg.Inch, path); e != nil {
		return fmt.Errorf("PlotRunningScore: %w", e)
	}
	return nil
}
