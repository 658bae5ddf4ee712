package lsrna

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NegLog10 returns -log10(p), with p floored at the smallest positive
// float so that zero stays finite.
func NegLog10(p float64) float64 {
	return -math.Log10(math.Max(p, math.SmallestNonzeroFloat64))
}

// VolcanoClass groups DE rows for colouring.
func VolcanoClass(r DERow, p ExportPolicy) string {
	if !p.Significant(r) {
		return "NS"
	}
	if r.LogFC > 0 {
		return "Up"
	}
	return "Down"
}

// PlotVolcano draws log fold change against -log10 adjusted p with dashed
// guide lines at the policy's volcano thresholds.
func PlotVolcano(path string, t DETable, pol ExportPolicy) error {
	if len(t.Rows) == 0 {
		return fmt.Errorf("PlotVolcano: empty table; %w", ErrInsufficientData)
	}
	groups := map[string]plotter.XYs{}
	xmin, xmax, ymax := 0.0, 0.0, 0.0
	for _, r := range t.Rows {
		c := VolcanoClass(r, pol)
		y := NegLog10(r.AdjP)
		groups[c] = append(groups[c], plotter.XY{X: r.LogFC, Y: y})
		xmin, xmax, ymax = math.Min(xmin, r.LogFC), math.Max(xmax, r.LogFC), math.Max(ymax, y)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Volcano: %v", t.Contrast)
	p.X.Label.Text = "log2 fold change"
	p.Y.Label.Text = "-log10 adjusted p"
	p.Legend.Top = true

	for _, c := range []struct {
		name string
		col  color.Color
	}{{"NS", nsColor}, {"Down", downColor}, {"Up", upColor}} {
		xys, ok := groups[c.name]
		if !ok {
			continue
		}
		s, e := plotter.NewScatter(xys)
		if e != nil {
			return fmt.Errorf("PlotVolcano: %w", e)
		}
		s.GlyphStyle.Color = c.col
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%v (%v)", c.name, len(xys)), s)
	}

	ylim := math.Max(ymax, NegLog10(pol.VolcanoAdjP)) * 1.05
	xlim := math.Max(math.Max(-xmin, xmax), pol.VolcanoLogFC) * 1.05
	guides := []plotter.XYs{
		{{X: -pol.VolcanoLogFC, Y: 0}, {X: -pol.VolcanoLogFC, Y: ylim}},
		{{X: pol.VolcanoLogFC, Y: 0}, {X: pol.VolcanoLogFC, Y: ylim}},
		{{X: -xlim, Y: NegLog10(pol.VolcanoAdjP)}, {X: xlim, Y: NegLog10(pol.VolcanoAdjP)}},
	}
	for _, g := range guides {
		l, e := plotter.NewLine(g)
		if e != nil {
			return fmt.Errorf("PlotVolcano: %w", e)
		}
		dashed(l)
		p.Add(l)
	}

	if e := savePlot(p, 6*vg.Inch, 5*vg.Inch, path); e != nil {
		return fmt.Errorf("PlotVolcano: %w", e)
	}
	return nil
}
