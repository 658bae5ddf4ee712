package lsrna

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Merge joins two nodes. Nodes below the number of leaves are leaves;
// node n+i is the cluster formed by merge i.
type Merge struct {
	Left, Right int
	Height      float64
	Size        int
}

type Dendrogram struct {
	Labels []string
	Merges []Merge
	// Order lists leaves left to right.
	Order []int
}

func (d Dendrogram) NLeaves() int {
	return len(d.Labels)
}

// Positions returns the horizontal coordinate of every node: leaves sit at
// their position in Order, clusters midway between their children.
func (d Dendrogram) Positions() []float64 {
	n := d.NLeaves()
	pos := make([]float64, n+len(d.Merges))
	for i, leaf := range d.Order {
		pos[leaf] = float64(i)
	}
	for i, m := range d.Merges {
		pos[n+i] = (pos[m.Left] + pos[m.Right]) / 2
	}
	return pos
}

// Height returns the merge height of a node; leaves are at zero.
func (d Dendrogram) Height(node int) float64 {
	if node < d.NLeaves() {
		return 0
	}
	return d.Merges[node-d.NLeaves()].Height
}

func euclideanDists(x mat.Matrix) [][]float64 {
	r, _ := x.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}
	d := make([][]float64, r)
	for i := range d {
		d[i] = make([]float64, r)
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := floats.Distance(rows[i], rows[j], 2)
			d[i][j], d[j][i] = v, v
		}
	}
	return d
}

// HClustComplete clusters the rows of x by complete linkage on Euclidean
// distance, using the nearest-neighbour chain algorithm.
func HClustComplete(x mat.Matrix, labels []string) (Dendrogram, error) {
	n, _ := x.Dims()
	if n != len(labels) {
		return Dendrogram{}, fmt.Errorf("HClustComplete: %v rows, %v labels; %w", n, len(labels), ErrShape)
	}
	if n == 0 {
		return Dendrogram{}, fmt.Errorf("HClustComplete: no rows; %w", ErrInsufficientData)
	}
	if n == 1 {
		return Dendrogram{Labels: labels, Order: []int{0}}, nil
	}
	d := euclideanDists(x)
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	type rawMerge struct {
		a, b   int
		height float64
	}
	raw := make([]rawMerge, 0, n-1)
	var chain []int
	for len(raw) < n-1 {
		if len(chain) == 0 {
			for i, ok := range active {
				if ok {
					chain = append(chain, i)
					break
				}
			}
		}
		a := chain[len(chain)-1]
		prev := -1
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
		}
		b, best := -1, math.Inf(1)
		if prev >= 0 {
			b, best = prev, d[a][prev]
		}
		for k, ok := range active {
			if !ok || k == a {
				continue
			}
			if d[a][k] < best {
				b, best = k, d[a][k]
			}
		}
		if b != prev {
			chain = append(chain, b)
			continue
		}
		chain = chain[:len(chain)-2]
		raw = append(raw, rawMerge{a: min(a, b), b: max(a, b), height: best})
		// The merged cluster lives in slot max(a, b).
		keep, drop := max(a, b), min(a, b)
		active[drop] = false
		for k, ok := range active {
			if ok && k != keep {
				v := math.Max(d[keep][k], d[drop][k])
				d[keep][k], d[k][keep] = v, v
			}
		}
	}

	slices.SortStableFunc(raw, func(x, y rawMerge) int {
		return cmp.Compare(x.height, y.height)
	})

	// Map each slot to the node currently occupying it.
	node := make([]int, n)
	size := make([]int, n)
	for i := range node {
		node[i] = i
		size[i] = 1
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	dg := Dendrogram{Labels: labels, Merges: make([]Merge, 0, n-1)}
	for i, m := range raw {
		ra, rb := find(m.a), find(m.b)
		left, right := node[ra], node[rb]
		if left > right {
			left, right = right, left
		}
		dg.Merges = append(dg.Merges, Merge{Left: left, Right: right, Height: m.height, Size: size[ra] + size[rb]})
		parent[ra] = rb
		node[rb] = n + i
		size[rb] += size[ra]
	}
	dg.Order = dg.leafOrder()
	return dg, nil
}

func (d Dendrogram) leafOrder() []int {
	n := d.NLeaves()
	order := make([]int, 0, n)
	stack := []int{n + len(d.Merges) - 1}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v < n {
			order = append(order, v)
			continue
		}
		m := d.Merges[v-n]
		stack = append(stack, m.Right, m.Left)
	}
	return order
}
