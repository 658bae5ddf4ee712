package lsrna

import (
	"fmt"
	"io"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"gonum.org/v1/gonum/mat"
)

type Condition string

const (
	Healthy Condition = "Healthy"
	LS      Condition = "LS"
)

// DefaultHealthyPrefix marks healthy-control sample names.
const DefaultHealthyPrefix = "HC"

type SampleRecord struct {
	Sample    string
	Condition Condition
}

type SampleTable struct {
	Records []SampleRecord
}

func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy", "hc", "control":
		return Healthy, nil
	case "ls", "disease", "scleroderma":
		return LS, nil
	}
	return "", fmt.Errorf("unknown condition %q; %w", s, ErrParse)
}

// LabelByPrefix labels every sample starting with prefix as Healthy and all
// others as LS.
func LabelByPrefix(samples []string, prefix string) SampleTable {
	t := SampleTable{Records: make([]SampleRecord, 0, len(samples))}
	for _, s := range samples {
		c := LS
		if strings.HasPrefix(s, prefix) {
			c = Healthy
		}
		t.Records = append(t.Records, SampleRecord{Sample: s, Condition: c})
	}
	return t
}

// ParseSampleSheet reads sample,condition lines. A first line whose
// condition field does not parse is treated as a header.
func ParseSampleSheet(r io.Reader, delim rune) (map[string]Condition, error) {
	cr := CsvIn(r, delim)
	sheet := map[string]Condition{}
	first := true
	for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
		if e != nil {
			return nil, fmt.Errorf("ParseSampleSheet: %w", e)
		}
		if len(l) < 2 {
			return nil, fmt.Errorf("ParseSampleSheet: line %v too short; %w", l, ErrParse)
		}
		var name, cond string
		if _, e := csvh.Scan(l, &name, &cond); e != nil {
			return nil, fmt.Errorf("ParseSampleSheet: line %v; %w", l, e)
		}
		c, e := ParseCondition(cond)
		if e != nil {
			if first {
				first = false
				continue
			}
			return nil, fmt.Errorf("ParseSampleSheet: line %v; %w", l, e)
		}
		first = false
		name = strings.TrimSpace(name)
		if _, ok := sheet[name]; ok {
			return nil, fmt.Errorf("ParseSampleSheet: sample %q; %w", name, ErrDuplicateID)
		}
		sheet[name] = c
	}
	return sheet, nil
}

func LoadSampleSheet(path string) (map[string]Condition, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, fmt.Errorf("LoadSampleSheet: %w", e)
	}
	defer r.Close()
	return ParseSampleSheet(r, DelimFor(path))
}

// LabelFromSheet maps every sample through the sheet and fails listing all
// samples the sheet does not cover.
func LabelFromSheet(samples []string, sheet map[string]Condition) (SampleTable, error) {
	t := SampleTable{Records: make([]SampleRecord, 0, len(samples))}
	var missing []string
	for _, s := range samples {
		c, ok := sheet[s]
		if !ok {
			missing = append(missing, s)
			continue
		}
		t.Records = append(t.Records, SampleRecord{Sample: s, Condition: c})
	}
	if len(missing) > 0 {
		return SampleTable{}, fmt.Errorf("LabelFromSheet: %v; %w", missing, ErrUnmatchedSample)
	}
	return t, nil
}

// Validate checks that the table covers samples in order and that both
// conditions are present.
func (t SampleTable) Validate(samples []string) error {
	if len(t.Records) != len(samples) {
		return fmt.Errorf("SampleTable.Validate: %v records for %v samples; %w", len(t.Records), len(samples), ErrShape)
	}
	for i, r := range t.Records {
		if r.Sample != samples[i] {
			return fmt.Errorf("SampleTable.Validate: record %v is %q, matrix has %q; %w", i, r.Sample, samples[i], ErrShape)
		}
		if r.Condition != Healthy && r.Condition != LS {
			return fmt.Errorf("SampleTable.Validate: sample %q condition %q; %w", r.Sample, r.Condition, ErrParse)
		}
	}
	nh, nl := t.Counts()
	if nh == 0 || nl == 0 {
		return fmt.Errorf("SampleTable.Validate: %v healthy, %v LS; %w", nh, nl, ErrInsufficientData)
	}
	return nil
}

func (t SampleTable) Counts() (healthy, ls int) {
	for _, r := range t.Records {
		if r.Condition == Healthy {
			healthy++
		} else {
			ls++
		}
	}
	return healthy, ls
}

func (t SampleTable) Conditions() []Condition {
	out := make([]Condition, 0, len(t.Records))
	for _, r := range t.Records {
		out = append(out, r.Condition)
	}
	return out
}

type Design struct {
	Matrix  *mat.Dense
	Columns []Condition
}

type Contrast struct {
	Name    string
	Weights []float64
}

// BuildDesign returns a cell-means design with one indicator column per
// condition and the LS minus Healthy contrast.
func BuildDesign(t SampleTable) (Design, Contrast) {
	cols := []Condition{Healthy, LS}
	x := mat.NewDense(len(t.Records), len(cols), nil)
	for i, r := range t.Records {
		for j, c := range cols {
			if r.Condition == c {
				x.Set(i, j, 1)
			}
		}
	}
	return Design{Matrix: x, Columns: cols}, Contrast{Name: "LS-Healthy", Weights: []float64{-1, 1}}
}
