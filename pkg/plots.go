package lsrna

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	healthyColor = color.RGBA{R: 0x1b, G: 0x9e, B: 0x77, A: 0xff}
	lsColor      = color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff}
	upColor      = color.RGBA{R: 0xd7, G: 0x30, B: 0x1f, A: 0xff}
	downColor    = color.RGBA{R: 0x2b, G: 0x8c, B: 0xbe, A: 0xff}
	nsColor      = color.RGBA{R: 0xbd, G: 0xbd, B: 0xbd, A: 0xff}
	guideColor   = color.RGBA{R: 0x63, G: 0x63, B: 0x63, A: 0xff}
)

func ConditionColor(c Condition) color.Color {
	if c == Healthy {
		return healthyColor
	}
	return lsColor
}

func savePlot(p *plot.Plot, w, h vg.Length, path string) error {
	if e := p.Save(w, h, path); e != nil {
		return fmt.Errorf("save %v: %w", path, e)
	}
	return nil
}

func dashed(l *plotter.Line) {
	l.LineStyle.Color = guideColor
	l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
}

// PlotLibraryBoxes draws one box of log2-CPM values per sample.
func PlotLibraryBoxes(path, title string, logcpm *mat.Dense, samples []string, groups []Condition) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "log2 CPM"
	_, c := logcpm.Dims()
	for j := 0; j < c; j++ {
		b, e := plotter.NewBoxPlot(vg.Points(14), float64(j), plotter.Values(mat.Col(nil, j, logcpm)))
		if e != nil {
			return fmt.Errorf("PlotLibraryBoxes: %w", e)
		}
		b.FillColor = ConditionColor(groups[j])
		p.Add(b)
	}
	p.NominalX(samples...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = draw.XRight
	w := vg.Length(max(6, float64(c)*0.35)) * vg.Inch
	if e := savePlot(p, w, 4*vg.Inch, path); e != nil {
		return fmt.Errorf("PlotLibraryBoxes: %w", e)
	}
	return nil
}

// PlotSamples2D draws a labelled scatter of two sample coordinates coloured
// by condition.
func PlotSamples2D(path, title, xlab, ylab string, coords mat.Matrix, samples []string, groups []Condition) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlab
	p.Y.Label.Text = ylab
	p.Legend.Top = true

	for _, c := range []Condition{Healthy, LS} {
		var xys plotter.XYs
		for i, g := range groups {
			if g == c {
				xys = append(xys, plotter.XY{X: coords.At(i, 0), Y: coords.At(i, 1)})
			}
		}
		if len(xys) == 0 {
			continue
		}
		s, e := plotter.NewScatter(xys)
		if e != nil {
			return fmt.Errorf("PlotSamples2D: %w", e)
		}
		s.GlyphStyle.Color = ConditionColor(c)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(string(c), s)
	}

	var lxy plotter.XYLabels
	for i, s := range samples {
		lxy.XYs = append(lxy.XYs, plotter.XY{X: coords.At(i, 0), Y: coords.At(i, 1)})
		lxy.Labels = append(lxy.Labels, s)
	}
	labels, e := plotter.NewLabels(lxy)
	if e != nil {
		return fmt.Errorf("PlotSamples2D: %w", e)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font.Size = vg.Points(7)
	}
	labels.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(4)}
	p.Add(labels)

	if e := savePlot(p, 6*vg.Inch, 5*vg.Inch, path); e != nil {
		return fmt.Errorf("PlotSamples2D: %w", e)
	}
	return nil
}

func PlotPCA(path string, r PCAResult, groups []Condition) error {
	_, k := r.Scores.Dims()
	if k < 2 {
		return fmt.Errorf("PlotPCA: %v components; %w", k, ErrInsufficientData)
	}
	return PlotSamples2D(path, "PCA",
		fmt.Sprintf("PC1 (%.1f%%)", r.VarPercent[0]),
		fmt.Sprintf("PC2 (%.1f%%)", r.VarPercent[1]),
		r.Scores, r.Samples, groups)
}

func PlotTSNE(path string, r TSNEResult, groups []Condition) error {
	return PlotSamples2D(path, "t-SNE", "tSNE-1", "tSNE-2", r.Embedding, r.Samples, groups)
}

// PlotVoomTrend draws the voom mean-variance points and the lowess trend.
func PlotVoomTrend(path string, t VoomTrend) error {
	p := plot.New()
	p.Title.Text = "voom: mean-variance trend"
	p.X.Label.Text = "log2( count size + 0.5 )"
	p.Y.Label.Text = "Sqrt( standard deviation )"

	pts := make(plotter.XYs, len(t.SX))
	for i := range t.SX {
		pts[i] = plotter.XY{X: t.SX[i], Y: t.SY[i]}
	}
	s, e := plotter.NewScatter(pts)
	if e != nil {
		return fmt.Errorf("PlotVoomTrend: %w", e)
	}
	s.GlyphStyle.Color = color.RGBA{A: 0x60}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(1)

	curve := make(plotter.XYs, len(t.CurveX))
	for i := range t.CurveX {
		curve[i] = plotter.XY{X: t.CurveX[i], Y: t.CurveY[i]}
	}
	l, e := plotter.NewLine(curve)
	if e != nil {
		return fmt.Errorf("PlotVoomTrend: %w", e)
	}
	l.LineStyle.Color = upColor
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(s, l)

	if e := savePlot(p, 6*vg.Inch, 5*vg.Inch, path); e != nil {
		return fmt.Errorf("PlotVoomTrend: %w", e)
	}
	return nil
}
