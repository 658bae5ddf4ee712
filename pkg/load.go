package lsrna

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/iterh"
)

// MatrixRow is one parsed gene line. Missing values are NaN.
type MatrixRow struct {
	Gene   string
	Values []float64
}

var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"NaN":  {},
	"nan":  {},
	"NULL": {},
	"null": {},
}

func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// DelimFor picks the field separator from the file name: tab for .tsv and
// .txt, comma otherwise. A trailing .gz is ignored.
func DelimFor(path string) rune {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(p, ".tsv") || strings.HasSuffix(p, ".txt") {
		return '\t'
	}
	return ','
}

func CsvIn(r io.Reader, delim rune) *csv.Reader {
	cr := csvh.CsvIn(r)
	cr.Comma = delim
	cr.ReuseRecord = false
	cr.FieldsPerRecord = -1
	return cr
}

func ParseValue(s string) (float64, error) {
	if IsMissingToken(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func ParseLineToRow(line []string, nsamples int) (MatrixRow, error) {
	if len(line) != nsamples+1 {
		return MatrixRow{}, fmt.Errorf("%v fields, want %v; %w", len(line), nsamples+1, ErrParse)
	}
	row := MatrixRow{Gene: strings.TrimSpace(line[0]), Values: make([]float64, nsamples)}
	if row.Gene == "" {
		return row, fmt.Errorf("empty gene identifier; %w", ErrParse)
	}
	for i, f := range line[1:] {
		v, e := ParseValue(f)
		if e != nil {
			return row, fmt.Errorf("gene %v sample column %v: %q is not numeric; %w", row.Gene, i+1, f, ErrParse)
		}
		row.Values[i] = v
	}
	return row, nil
}

func ParseHeader(cr *csv.Reader) ([]string, error) {
	h, e := cr.Read()
	if e == io.EOF {
		return nil, fmt.Errorf("ParseHeader: empty input; %w", ErrParse)
	}
	if e != nil {
		return nil, fmt.Errorf("ParseHeader: %w", e)
	}
	if len(h) < 2 {
		return nil, fmt.Errorf("ParseHeader: header %v has no sample columns; %w", h, ErrParse)
	}
	samples := make([]string, 0, len(h)-1)
	for _, s := range h[1:] {
		samples = append(samples, strings.TrimSpace(s))
	}
	if e := checkUnique("sample", samples); e != nil {
		return nil, fmt.Errorf("ParseHeader: %w", e)
	}
	return samples, nil
}

// ParseRows yields one MatrixRow per remaining line of cr and stops at the
// first error.
func ParseRows(cr *csv.Reader, nsamples int) iter.Seq2[MatrixRow, error] {
	return func(y func(MatrixRow, error) bool) {
		hl := func(e error, l []string) error {
			return fmt.Errorf("ParseRows: line %v; %w", l, e)
		}
		for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
			if e != nil {
				y(MatrixRow{}, hl(e, l))
				return
			}
			row, e := ParseLineToRow(l, nsamples)
			if e != nil {
				y(row, hl(e, l))
				return
			}
			if !y(row, nil) {
				return
			}
		}
	}
}

func ParseMatrix(r io.Reader, delim rune) (ExprMatrix, error) {
	h := csvh.Handle0("ParseMatrix: %w")
	cr := CsvIn(r, delim)
	samples, e := ParseHeader(cr)
	if e != nil {
		return ExprMatrix{}, h(e)
	}
	rows, e := iterh.CollectWithError(ParseRows(cr, len(samples)))
	if e != nil {
		return ExprMatrix{}, h(e)
	}

	genes := make([]string, 0, len(rows))
	data := make([]float64, 0, len(rows)*len(samples))
	for _, row := range rows {
		genes = append(genes, row.Gene)
		data = append(data, row.Values...)
	}
	m, e := NewExprMatrix(genes, samples, data)
	if e != nil {
		return ExprMatrix{}, h(e)
	}
	return m, nil
}

// LoadMatrix reads a possibly gzipped delimited expression matrix.
func LoadMatrix(path string) (ExprMatrix, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return ExprMatrix{}, fmt.Errorf("LoadMatrix: %w", e)
	}
	defer r.Close()
	return ParseMatrix(r, DelimFor(path))
}
