package lsrna

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// HeatmapZLimit clips row z-scores for colouring.
const HeatmapZLimit = 3.0

// maxHeatmapLabels is the largest gene count whose names are drawn.
const maxHeatmapLabels = 60

type heatGrid struct {
	z *mat.Dense
}

func (g heatGrid) Dims() (c, r int) {
	r, c = g.z.Dims()
	return c, r
}

func (g heatGrid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g heatGrid) X(c int) float64    { return float64(c) }
func (g heatGrid) Y(r int) float64    { return float64(r) }

// HeatmapData is the row-scaled matrix of significant genes with its row
// clustering.
type HeatmapData struct {
	Genes   []string
	Samples []string
	Groups  []Condition
	// Z is genes x samples, rows in dendrogram order.
	Z    *mat.Dense
	Tree Dendrogram
}

// BuildHeatmap z-scores the log2-CPM of the given genes across samples and
// orders them by complete-linkage clustering.
func BuildHeatmap(cs CountSet, genes []string) (HeatmapData, error) {
	idx := cs.Matrix.GeneIndex()
	logcpm := LogCPM(cs, ExplorePrior)
	_, c := logcpm.Dims()
	var names []string
	var rows [][]float64
	for _, g := range genes {
		i, ok := idx[g]
		if !ok {
			continue
		}
		names = append(names, g)
		rows = append(rows, mat.Row(nil, i, logcpm))
	}
	if len(rows) < 2 {
		return HeatmapData{}, fmt.Errorf("BuildHeatmap: %v genes to plot; %w", len(rows), ErrInsufficientData)
	}
	x := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	z, e := RowScale(x)
	if e != nil {
		return HeatmapData{}, fmt.Errorf("BuildHeatmap: %w", e)
	}
	tree, e := HClustComplete(z, names)
	if e != nil {
		return HeatmapData{}, fmt.Errorf("BuildHeatmap: %w", e)
	}
	ordered := mat.NewDense(len(rows), c, nil)
	onames := make([]string, len(rows))
	for k, i := range tree.Order {
		ordered.SetRow(k, z.RawRowView(i))
		onames[k] = names[i]
	}
	return HeatmapData{
		Genes:   onames,
		Samples: cs.Matrix.Samples,
		Groups:  cs.Groups,
		Z:       ordered,
		Tree:    tree,
	}, nil
}

func rect(x0, y0, x1, y1 float64) plotter.XYs {
	return plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// dendrogramLines draws the row tree to the left of x = right, with leaf
// k at y = k and the tallest merge at x = right - width.
func dendrogramLines(t Dendrogram, right, width float64) ([]*plotter.Line, error) {
	if len(t.Merges) == 0 {
		return nil, nil
	}
	pos := t.Positions()
	top := t.Merges[len(t.Merges)-1].Height
	if top <= 0 {
		top = 1
	}
	x := func(node int) float64 { return right - t.Height(node)/top*width }
	n := t.NLeaves()
	var out []*plotter.Line
	for i, m := range t.Merges {
		hx := x(n + i)
		l, e := plotter.NewLine(plotter.XYs{
			{X: x(m.Left), Y: pos[m.Left]},
			{X: hx, Y: pos[m.Left]},
			{X: hx, Y: pos[m.Right]},
			{X: x(m.Right), Y: pos[m.Right]},
		})
		if e != nil {
			return nil, e
		}
		l.LineStyle.Width = vg.Points(0.6)
		out = append(out, l)
	}
	return out, nil
}

// PlotHeatmap draws the row-scaled expression of hd with the row dendrogram
// on the left and a condition strip above the columns.
func PlotHeatmap(path string, hd HeatmapData) error {
	ng, ns := hd.Z.Dims()
	clipped := mat.DenseCopyOf(hd.Z)
	clipped.Apply(func(i, j int, v float64) float64 {
		return math.Max(-HeatmapZLimit, math.Min(HeatmapZLimit, v))
	}, clipped)

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-HeatmapZLimit)
	cm.SetMax(HeatmapZLimit)
	hm := plotter.NewHeatMap(heatGrid{clipped}, cm.Palette(255))
	hm.Min, hm.Max = -HeatmapZLimit, HeatmapZLimit

	p := plot.New()
	p.Title.Text = "Significant genes, row z-score"
	p.Add(hm)

	// Leaf k of the tree sits at row k of the ordered matrix.
	treeWidth := math.Max(1.5, float64(ns)*0.3)
	lines, e := dendrogramLines(hd.Tree, -0.6, treeWidth)
	if e != nil {
		return fmt.Errorf("PlotHeatmap: %w", e)
	}
	for _, l := range lines {
		p.Add(l)
	}

	stripLo := float64(ng) - 0.5 + math.Max(0.2, float64(ng)*0.01)
	stripHi := stripLo + math.Max(0.8, float64(ng)*0.04)
	seen := map[Condition]bool{}
	for j, g := range hd.Groups {
		poly, e := plotter.NewPolygon(rect(float64(j)-0.5, stripLo, float64(j)+0.5, stripHi))
		if e != nil {
			return fmt.Errorf("PlotHeatmap: %w", e)
		}
		poly.Color = ConditionColor(g)
		poly.LineStyle.Width = 0
		p.Add(poly)
		if !seen[g] {
			seen[g] = true
			p.Legend.Add(string(g), poly)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false

	p.NominalX(hd.Samples...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = draw.XRight
	if ng <= maxHeatmapLabels {
		p.NominalY(hd.Genes...)
	} else {
		p.HideY()
	}
	p.X.Min = -0.6 - treeWidth
	p.Y.Max = stripHi

	h := vg.Length(math.Max(5, math.Min(14, float64(ng)*0.15))) * vg.Inch
	w := vg.Length(math.Max(6, float64(ns)*0.35+2)) * vg.Inch
	if e := savePlot(p, w, h, path); e != nil {
		return fmt.Errorf("PlotHeatmap: %w", e)
	}
	return nil
}
