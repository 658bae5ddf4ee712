package lsrna

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
)

type GeneSet struct {
	ID          string
	Description string
	Genes       []string
}

// GeneSetCollection is a named group of gene sets, such as a GMT file.
type GeneSetCollection struct {
	Name string
	Sets []GeneSet
}

// ParseGMT reads tab-separated gene sets: id, description, then genes.
// Blank gene fields are skipped and repeated genes within a set are
// collapsed.
func ParseGMT(r io.Reader, name string) (GeneSetCollection, error) {
	cr := CsvIn(r, '\t')
	cr.LazyQuotes = true
	coll := GeneSetCollection{Name: name}
	seen := map[string]struct{}{}
	for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
		if e != nil {
			return GeneSetCollection{}, fmt.Errorf("ParseGMT: %w; %w", e, ErrParse)
		}
		if len(l) < 3 {
			return GeneSetCollection{}, fmt.Errorf("ParseGMT: line %v too short; %w", l, ErrParse)
		}
		gs := GeneSet{ID: strings.TrimSpace(l[0]), Description: strings.TrimSpace(l[1])}
		if _, ok := seen[gs.ID]; ok {
			return GeneSetCollection{}, fmt.Errorf("ParseGMT: set %q; %w", gs.ID, ErrDuplicateID)
		}
		seen[gs.ID] = struct{}{}
		inSet := map[string]struct{}{}
		for _, g := range l[2:] {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			if _, ok := inSet[g]; ok {
				continue
			}
			inSet[g] = struct{}{}
			gs.Genes = append(gs.Genes, g)
		}
		coll.Sets = append(coll.Sets, gs)
	}
	return coll, nil
}

func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ResolveDataPath makes relative local paths relative to dataDir. URLs and
// absolute paths are returned unchanged.
func ResolveDataPath(src, dataDir string) string {
	if src == "" || IsURL(src) || filepath.IsAbs(src) || dataDir == "" {
		return src
	}
	return filepath.Join(dataDir, src)
}

func fetchGMT(ctx context.Context, client *http.Client, url, name string) (GeneSetCollection, error) {
	req, e := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if e != nil {
		return GeneSetCollection{}, e
	}
	resp, e := client.Do(req)
	if e != nil {
		return GeneSetCollection{}, e
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return GeneSetCollection{}, fmt.Errorf("GET %v: %v", url, resp.Status)
	}
	return ParseGMT(resp.Body, name)
}

// LoadGeneSets reads a GMT collection from a local (optionally gzipped) file
// or an http(s) URL.
func LoadGeneSets(ctx context.Context, client *http.Client, src, dataDir, name string) (GeneSetCollection, error) {
	if src == "" {
		return GeneSetCollection{}, fmt.Errorf("LoadGeneSets: no source for %v; %w", name, ErrInsufficientData)
	}
	if IsURL(src) {
		if client == nil {
			client = http.DefaultClient
		}
		coll, e := fetchGMT(ctx, client, src, name)
		if e != nil {
			return GeneSetCollection{}, fmt.Errorf("LoadGeneSets: %w", e)
		}
		return coll, nil
	}
	path := ResolveDataPath(src, dataDir)
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return GeneSetCollection{}, fmt.Errorf("LoadGeneSets: %w", e)
	}
	defer r.Close()
	coll, e := ParseGMT(r, name)
	if e != nil {
		return GeneSetCollection{}, fmt.Errorf("LoadGeneSets: %v: %w", path, e)
	}
	return coll, nil
}

// IDMap translates matrix gene ids to the symbols used by gene sets.
type IDMap map[string]string

// ParseIDMap reads from,symbol lines. A first line "from",... is a header.
func ParseIDMap(r io.Reader, delim rune) (IDMap, error) {
	cr := CsvIn(r, delim)
	m := IDMap{}
	first := true
	for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
		if e != nil {
			return nil, fmt.Errorf("ParseIDMap: %w", e)
		}
		if len(l) < 2 {
			return nil, fmt.Errorf("ParseIDMap: line %v too short; %w", l, ErrParse)
		}
		from, to := strings.TrimSpace(l[0]), strings.TrimSpace(l[1])
		if first && strings.EqualFold(from, "from") {
			first = false
			continue
		}
		first = false
		if from == "" || to == "" {
			continue
		}
		if _, ok := m[from]; ok {
			return nil, fmt.Errorf("ParseIDMap: id %q; %w", from, ErrDuplicateID)
		}
		m[from] = to
	}
	return m, nil
}

func LoadIDMap(path string) (IDMap, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, fmt.Errorf("LoadIDMap: %w", e)
	}
	defer r.Close()
	return ParseIDMap(r, DelimFor(path))
}

// MapTable renames the genes of t through m. Unmapped genes are dropped;
// when several genes map to one symbol the row with the smallest p-value
// is kept. A nil map returns t unchanged.
func MapTable(t DETable, m IDMap) (mapped DETable, dropped int, err error) {
	if m == nil {
		return t, 0, nil
	}
	sorted := DETable{Rows: slices.Clone(t.Rows)}
	sorted.SortByP()
	seen := map[string]struct{}{}
	var kept []DERow
	for _, r := range sorted.Rows {
		sym, ok := m[r.Gene]
		if !ok {
			dropped++
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		r.Gene = sym
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return DETable{}, dropped, fmt.Errorf("MapTable: none of %v genes mapped; %w", len(t.Rows), ErrInsufficientData)
	}
	return DETable{Contrast: t.Contrast, Rows: kept}, dropped, nil
}
