package lsrna

import (
	"fmt"
	"io"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
)

func WriteDERow(w io.Writer, r DERow) error {
	_, e := fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
		r.Gene,
		r.LogFC,
		r.AveExpr,
		r.T,
		r.P,
		r.AdjP,
	)
	return e
}

// WriteDETable writes a header line and every row of t, tab separated.
func WriteDETable(w io.Writer, t DETable) error {
	if _, e := fmt.Fprintf(w, "%v\n", strings.Join(DEHeader, "\t")); e != nil {
		return e
	}
	for _, r := range t.Rows {
		if e := WriteDERow(w, r); e != nil {
			return e
		}
	}
	return nil
}

// WriteDETablePath writes t to path, gzipped when path ends in .gz.
func WriteDETablePath(path string, t DETable) (err error) {
	w, e := csvh.CreateMaybeGz(path)
	if e != nil {
		return e
	}
	defer func() { csvh.DeferE(&err, w.Close()) }()
	return WriteDETable(w, t)
}

var ORAHeader = []string{"ID", "Description", "GeneRatio", "BgRatio", "setSize", "Count", "pvalue", "p.adjust", "qvalue", "geneID"}
var GSEAHeader = []string{"ID", "Description", "setSize", "enrichmentScore", "NES", "pvalue", "p.adjust", "core_enrichment"}

func WriteEnrichRow(w io.Writer, kind string, r EnrichRow) error {
	genes := strings.Join(r.Genes, "/")
	var e error
	if kind == KindGSEA {
		_, e = fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
			r.ID, r.Description, r.SetSize, r.ES, r.NES, r.P, r.AdjP, genes)
	} else {
		_, e = fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
			r.ID, r.Description, r.GeneRatio, r.BgRatio, r.SetSize, r.Count, r.P, r.AdjP, r.Q, genes)
	}
	return e
}

func WriteEnrichTable(w io.Writer, t EnrichTable) error {
	hdr := ORAHeader
	if t.Kind == KindGSEA {
		hdr = GSEAHeader
	}
	if _, e := fmt.Fprintf(w, "%v\n", strings.Join(hdr, "\t")); e != nil {
		return e
	}
	for _, r := range t.Rows {
		if e := WriteEnrichRow(w, t.Kind, r); e != nil {
			return e
		}
	}
	return nil
}

func WriteEnrichTablePath(path string, t EnrichTable) (err error) {
	w, e := csvh.CreateMaybeGz(path)
	if e != nil {
		return e
	}
	defer func() { csvh.DeferE(&err, w.Close()) }()
	return WriteEnrichTable(w, t)
}
