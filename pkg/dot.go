package lsrna

import (
	"fmt"
	"io"

	"github.com/jgbaldwinbrown/csvh"
)

func UpColor() string {
	return `"#d7301f"`
}

func DownColor() string {
	return `"#2b8cbe"`
}

func leafAes(dir float64) string {
	c := `"#bdbdbd"`
	if dir > 0 {
		c = UpColor()
	} else if dir < 0 {
		c = DownColor()
	}
	return fmt.Sprintf(`shape=box; style=filled; fillcolor=%v`, c)
}

// DendrogramToGraphViz writes the dendrogram as a DOT digraph with edges
// from clusters to their children. Leaves are coloured by the sign of
// dirs[leaf] when dirs is non-nil.
func DendrogramToGraphViz(w io.Writer, d Dendrogram, dirs []float64) (n int, err error) {
	nw, e := fmt.Fprintf(w, "digraph dendrogram {\nrankdir=LR;\nnode [fontsize=10];\n")
	n += nw
	if e != nil {
		return n, e
	}

	for _, leaf := range d.Order {
		var dir float64
		if dirs != nil {
			dir = dirs[leaf]
		}
		nw, e = fmt.Fprintf(w, "n%v [label=%q; %v]\n", leaf, d.Labels[leaf], leafAes(dir))
		n += nw
		if e != nil {
			return n, e
		}
	}

	nl := d.NLeaves()
	for i, m := range d.Merges {
		id := nl + i
		nw, e = fmt.Fprintf(w, "n%v [label=\"%.3g\"; shape=point]\nn%v -> n%v\nn%v -> n%v\n", id, m.Height, id, m.Left, id, m.Right)
		n += nw
		if e != nil {
			return n, e
		}
	}

	nw, e = fmt.Fprintf(w, "}\n")
	n += nw
	return n, e
}

func WriteDendrogramPath(path string, d Dendrogram, dirs []float64) (err error) {
	w, e := csvh.CreateMaybeGz(path)
	if e != nil {
		return e
	}
	defer func() { csvh.DeferE(&err, w.Close()) }()
	_, e = DendrogramToGraphViz(w, d, dirs)
	return e
}
