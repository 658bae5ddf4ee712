package lsrna

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ExprMatrix holds expression values with genes as rows and samples as
// columns.
type ExprMatrix struct {
	Genes   []string
	Samples []string
	Data    *mat.Dense
}

func NewExprMatrix(genes, samples []string, data []float64) (ExprMatrix, error) {
	if len(genes) == 0 || len(samples) == 0 {
		return ExprMatrix{}, fmt.Errorf("NewExprMatrix: %v genes x %v samples; %w", len(genes), len(samples), ErrInsufficientData)
	}
	if len(data) != len(genes)*len(samples) {
		return ExprMatrix{}, fmt.Errorf("NewExprMatrix: len(data) %v != %v x %v; %w", len(data), len(genes), len(samples), ErrShape)
	}
	m := ExprMatrix{
		Genes:   genes,
		Samples: samples,
		Data:    mat.NewDense(len(genes), len(samples), data),
	}
	return m, m.Validate()
}

func checkUnique(kind string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%v %q: %w", kind, id, ErrDuplicateID)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Validate checks that identifiers are unique and match the data shape.
func (m ExprMatrix) Validate() error {
	if m.Data == nil || len(m.Genes) == 0 || len(m.Samples) == 0 {
		return fmt.Errorf("ExprMatrix.Validate: empty matrix; %w", ErrInsufficientData)
	}
	r, c := m.Data.Dims()
	if r != len(m.Genes) || c != len(m.Samples) {
		return fmt.Errorf("ExprMatrix.Validate: data %vx%v, ids %vx%v; %w", r, c, len(m.Genes), len(m.Samples), ErrShape)
	}
	if e := checkUnique("gene", m.Genes); e != nil {
		return fmt.Errorf("ExprMatrix.Validate: %w", e)
	}
	if e := checkUnique("sample", m.Samples); e != nil {
		return fmt.Errorf("ExprMatrix.Validate: %w", e)
	}
	return nil
}

func (m ExprMatrix) Dims() (genes, samples int) {
	return m.Data.Dims()
}

// SubsetRows returns a new matrix holding only the rows whose keep flag is set.
func (m ExprMatrix) SubsetRows(keep []bool) ExprMatrix {
	_, c := m.Data.Dims()
	var genes []string
	var data []float64
	for i, k := range keep {
		if !k {
			continue
		}
		genes = append(genes, m.Genes[i])
		data = append(data, m.Data.RawRowView(i)...)
	}
	if len(genes) == 0 {
		return ExprMatrix{Samples: m.Samples}
	}
	return ExprMatrix{
		Genes:   genes,
		Samples: m.Samples,
		Data:    mat.NewDense(len(genes), c, data),
	}
}

// ColSums returns the per-sample totals.
func (m ExprMatrix) ColSums() []float64 {
	r, c := m.Data.Dims()
	out := make([]float64, c)
	for i := 0; i < r; i++ {
		for j, v := range m.Data.RawRowView(i) {
			out[j] += v
		}
	}
	return out
}

func (m ExprMatrix) GeneIndex() map[string]int {
	idx := make(map[string]int, len(m.Genes))
	for i, g := range m.Genes {
		idx[g] = i
	}
	return idx
}

func allFinite(fs ...float64) bool {
	for _, f := range fs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
