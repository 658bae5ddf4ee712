package lsrna

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jgbaldwinbrown/lsrna/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Version is reported by the CLI and stored in run records.
const Version = "0.3.0"

// Output file names inside the output directory.
const (
	FileLibraryRaw   = "library_raw.png"
	FileLibraryTMM   = "library_tmm.png"
	FilePCA          = "pca.png"
	FileTSNE         = "tsne.png"
	FileVoomTrend    = "voom_trend.png"
	FileVolcano      = "volcano.png"
	FileHeatmap      = "heatmap.png"
	FileDendrogram   = "heatmap_dendrogram.dot"
	FileWorkbook     = "HC_vs_LS_deg.xlsx"
	FileDETable      = "de_table.tsv.gz"
	FileGOTable      = "go_enrichment.tsv"
	FileGOBar        = "go_bar.png"
	FileGSEATable    = "gsea.tsv"
	FileGSEABar      = "gsea_bar.png"
	FileGSEARunning  = "gsea_running.png"
	FileRunRecord    = "run.yaml"
	goBarTerms       = 20
	minHeatmapGenes  = 2
	stageFieldName   = "stage"
	outputsFieldName = "path"
)

// Enrichment outcomes recorded in run.yaml.
const (
	StatusDone         = "done"
	StatusSkipped      = "skipped"
	StatusInsufficient = "insufficient_data"
)

// Run holds everything one analysis needs: the configuration, an id for
// provenance and the HTTP client used for reference data.
type Run struct {
	ID     string
	Config Config
	Client *http.Client
	log    *zap.Logger
}

// RunRecord is written to run.yaml at the end of a run.
type RunRecord struct {
	RunID       string   `yaml:"run_id"`
	Version     string   `yaml:"version"`
	Started     string   `yaml:"started"`
	Finished    string   `yaml:"finished"`
	Samples     int      `yaml:"samples"`
	Healthy     int      `yaml:"healthy"`
	LS          int      `yaml:"ls"`
	GenesInput  int      `yaml:"genes_input"`
	GenesTested int      `yaml:"genes_tested"`
	Significant int      `yaml:"significant"`
	Up          int      `yaml:"up"`
	Down        int      `yaml:"down"`
	GOTerms     int      `yaml:"go_terms"`
	GOStatus    string   `yaml:"go_status"`
	Pathways    int      `yaml:"gsea_pathways"`
	GSEAStatus  string   `yaml:"gsea_status"`
	Outputs     []string `yaml:"outputs"`
	Config      Config   `yaml:"config"`
}

func NewRun(cfg Config) *Run {
	id := uuid.NewString()
	return &Run{
		ID:     id,
		Config: cfg,
		Client: &http.Client{},
		log:    logger.With(zap.String("run_id", id)),
	}
}

func (r *Run) out(name string) string {
	return filepath.Join(r.Config.OutDir, name)
}

func (r *Run) wrote(rec *RunRecord, name string) {
	rec.Outputs = append(rec.Outputs, name)
	r.log.Info("wrote output", zap.String(outputsFieldName, r.out(name)))
}

// Labels assigns conditions to samples from the sample sheet when one is
// configured and from the healthy prefix otherwise.
func (r *Run) Labels(samples []string) (SampleTable, error) {
	if r.Config.SampleSheet != "" {
		sheet, e := LoadSampleSheet(r.Config.SampleSheet)
		if e != nil {
			return SampleTable{}, e
		}
		return LabelFromSheet(samples, sheet)
	}
	r.log.Warn("no sample sheet configured, labelling by prefix", zap.String("prefix", r.Config.HealthyPrefix))
	return LabelByPrefix(samples, r.Config.HealthyPrefix), nil
}

// Prepare loads, imputes and labels the input matrix.
func (r *Run) Prepare() (ExprMatrix, SampleTable, error) {
	r.log.Info("stage start", zap.String(stageFieldName, "load"), zap.String("input", r.Config.Input))
	raw, e := LoadMatrix(r.Config.Input)
	if e != nil {
		return ExprMatrix{}, SampleTable{}, e
	}
	ng, ns := raw.Dims()
	r.log.Info("loaded matrix", zap.Int("genes", ng), zap.Int("samples", ns))

	m, rep, e := Impute(raw)
	if e != nil {
		return ExprMatrix{}, SampleTable{}, e
	}
	r.log.Info("imputed", zap.Int("imputed_values", rep.Imputed), zap.Int("dropped_genes", len(rep.Dropped)))

	labels, e := r.Labels(m.Samples)
	if e != nil {
		return ExprMatrix{}, SampleTable{}, e
	}
	if e := labels.Validate(m.Samples); e != nil {
		return ExprMatrix{}, SampleTable{}, e
	}
	nh, nl := labels.Counts()
	r.log.Info("labelled samples", zap.Int("healthy", nh), zap.Int("ls", nl))
	return m, labels, nil
}

func (r *Run) explore(cs CountSet, rec *RunRecord) error {
	r.log.Info("stage start", zap.String(stageFieldName, "explore"))
	ones := make([]float64, len(cs.NormFactors))
	for i := range ones {
		ones[i] = 1
	}
	rawCS := cs
	rawCS.NormFactors = ones
	if e := PlotLibraryBoxes(r.out(FileLibraryRaw), "log2 CPM, raw library sizes", LogCPM(rawCS, ExplorePrior), cs.Matrix.Samples, cs.Groups); e != nil {
		return e
	}
	r.wrote(rec, FileLibraryRaw)
	if e := PlotLibraryBoxes(r.out(FileLibraryTMM), "log2 CPM, TMM library sizes", LogCPM(cs, ExplorePrior), cs.Matrix.Samples, cs.Groups); e != nil {
		return e
	}
	r.wrote(rec, FileLibraryTMM)

	pca, e := PCA(cs)
	if e != nil {
		return e
	}
	r.log.Info("pca", zap.Float64s("var_percent", pca.VarPercent[:min(2, len(pca.VarPercent))]))
	if e := PlotPCA(r.out(FilePCA), pca, cs.Groups); e != nil {
		return e
	}
	r.wrote(rec, FilePCA)

	x, e := SampleMatrix(LogCPM(cs, ExplorePrior))
	if e != nil {
		return e
	}
	ts, e := TSNE(x, cs.Matrix.Samples, r.Config.TSNE)
	if e != nil {
		return e
	}
	r.log.Info("t-SNE", zap.Float64("kl", ts.KL), zap.Uint64("seed", r.Config.TSNE.Seed))
	if e := PlotTSNE(r.out(FileTSNE), ts, cs.Groups); e != nil {
		return e
	}
	r.wrote(rec, FileTSNE)
	return nil
}

func (r *Run) report(cs CountSet, t DETable, v VoomData, rec *RunRecord) error {
	r.log.Info("stage start", zap.String(stageFieldName, "report"))
	if e := PlotVoomTrend(r.out(FileVoomTrend), v.Trend); e != nil {
		return e
	}
	r.wrote(rec, FileVoomTrend)

	if e := WriteDETablePath(r.out(FileDETable), t); e != nil {
		return fmt.Errorf("WriteDETablePath: %w", e)
	}
	r.wrote(rec, FileDETable)

	gl, e := WriteGeneListWorkbook(r.out(FileWorkbook), t, r.Config.Export, r.ID)
	if e != nil {
		return e
	}
	rec.Significant, rec.Up, rec.Down = len(gl.All), len(gl.Up), len(gl.Down)
	r.log.Info("gene lists",
		zap.Float64("adj_p_cutoff", r.Config.Export.AdjPCutoff),
		zap.Float64("min_abs_log_fc", r.Config.Export.MinAbsLogFC),
		zap.Int("all", len(gl.All)), zap.Int("up", len(gl.Up)), zap.Int("down", len(gl.Down)))
	r.wrote(rec, FileWorkbook)

	if e := PlotVolcano(r.out(FileVolcano), t, r.Config.Export); e != nil {
		return e
	}
	r.wrote(rec, FileVolcano)

	if len(gl.All) < minHeatmapGenes {
		r.log.Warn("too few significant genes for a heatmap", zap.Int("significant", len(gl.All)))
		return nil
	}
	sig := make([]string, len(gl.All))
	dirs := make([]float64, len(gl.All))
	for i, row := range gl.All {
		sig[i] = row.Gene
		dirs[i] = row.LogFC
	}
	hd, e := BuildHeatmap(cs, sig)
	if e != nil {
		return e
	}
	if e := PlotHeatmap(r.out(FileHeatmap), hd); e != nil {
		return e
	}
	r.wrote(rec, FileHeatmap)
	if e := WriteDendrogramPath(r.out(FileDendrogram), hd.Tree, dirs); e != nil {
		return fmt.Errorf("WriteDendrogramPath: %w", e)
	}
	r.wrote(rec, FileDendrogram)
	return nil
}

func (r *Run) geneSets(ctx context.Context, src, name string) (GeneSetCollection, bool, error) {
	if src == "" {
		r.log.Warn("no gene set source configured, skipping", zap.String("collection", name))
		return GeneSetCollection{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.Config.GetFetchTimeout())
	defer cancel()
	coll, e := LoadGeneSets(ctx, r.Client, src, r.Config.DataDir, name)
	if e != nil {
		return GeneSetCollection{}, false, e
	}
	r.log.Info("loaded gene sets", zap.String("collection", name), zap.Int("sets", len(coll.Sets)))
	return coll, true, nil
}

func (r *Run) enrich(ctx context.Context, t DETable, rec *RunRecord) error {
	r.log.Info("stage start", zap.String(stageFieldName, "enrich"))
	mapped := t
	if r.Config.GeneSets.IDMap != "" {
		m, e := LoadIDMap(ResolveDataPath(r.Config.GeneSets.IDMap, r.Config.DataDir))
		if e != nil {
			return e
		}
		var dropped int
		mapped, dropped, e = MapTable(t, m)
		if e != nil {
			return e
		}
		r.log.Info("mapped gene ids", zap.Int("mapped", len(mapped.Rows)), zap.Int("unmapped", dropped))
	}

	var e error
	if rec.GOStatus, e = r.ora(ctx, mapped, rec); e != nil {
		return e
	}
	if rec.GSEAStatus, e = r.gsea(ctx, mapped, rec); e != nil {
		return e
	}
	return nil
}

// ora runs GO over-representation. A query too small to test is a result,
// not a failure: it is logged and recorded so that GSEA still runs.
func (r *Run) ora(ctx context.Context, t DETable, rec *RunRecord) (string, error) {
	goSets, ok, e := r.geneSets(ctx, r.Config.GeneSets.GO, "GO_BP")
	if e != nil {
		return "", e
	}
	if !ok {
		return StatusSkipped, nil
	}
	query, universe := ORAQuery(t, r.Config.ORA, r.Config.Export)
	r.log.Info("ORA query", zap.String("policy", r.Config.ORA.Query), zap.Int("query", len(query)), zap.Int("universe", len(universe)))
	ora, e := EnrichORA(query, universe, goSets, r.Config.ORA)
	if errors.Is(e, ErrInsufficientData) {
		r.log.Warn("skipping GO enrichment", zap.Error(e))
		return StatusInsufficient, nil
	}
	if e != nil {
		return "", e
	}
	rec.GOTerms = len(ora.Rows)
	if e := WriteEnrichTablePath(r.out(FileGOTable), ora); e != nil {
		return "", fmt.Errorf("WriteEnrichTablePath: %w", e)
	}
	r.wrote(rec, FileGOTable)
	if len(ora.Rows) > 0 {
		if e := PlotORABar(r.out(FileGOBar), ora, goBarTerms); e != nil {
			return "", e
		}
		r.wrote(rec, FileGOBar)
	}
	return StatusDone, nil
}

func (r *Run) gsea(ctx context.Context, t DETable, rec *RunRecord) (string, error) {
	hallmark, ok, e := r.geneSets(ctx, r.Config.GeneSets.Hallmark, "HALLMARK")
	if e != nil {
		return "", e
	}
	if !ok {
		return StatusSkipped, nil
	}
	rl := RankByLogFC(t)
	gsea, e := GSEA(rl, hallmark, r.Config.GSEA)
	if errors.Is(e, ErrInsufficientData) {
		r.log.Warn("skipping GSEA", zap.Error(e))
		return StatusInsufficient, nil
	}
	if e != nil {
		return "", e
	}
	rec.Pathways = len(gsea.Rows)
	r.log.Info("GSEA", zap.Int("pathways", len(gsea.Rows)), zap.Int("permutations", r.Config.GSEA.Permutations), zap.Uint64("seed", r.Config.GSEA.Seed))
	if e := WriteEnrichTablePath(r.out(FileGSEATable), gsea); e != nil {
		return "", fmt.Errorf("WriteEnrichTablePath: %w", e)
	}
	r.wrote(rec, FileGSEATable)
	if len(gsea.Rows) == 0 {
		return StatusDone, nil
	}
	top := TopByAbsNES(gsea, r.Config.GSEA.Top)
	if e := PlotGSEABar(r.out(FileGSEABar), top); e != nil {
		return "", e
	}
	r.wrote(rec, FileGSEABar)

	best := TopByAbsNES(gsea, 1).Rows[0]
	for _, gs := range hallmark.Sets {
		if gs.ID == best.ID {
			if e := PlotRunningScore(r.out(FileGSEARunning), rl, gs); e != nil {
				return "", e
			}
			r.wrote(rec, FileGSEARunning)
			break
		}
	}
	return StatusDone, nil
}

// Execute runs every stage in order and writes run.yaml.
func (r *Run) Execute(ctx context.Context) (RunRecord, error) {
	rec := RunRecord{RunID: r.ID, Version: Version, Started: time.Now().UTC().Format(time.RFC3339), Config: r.Config}
	if e := r.Config.Validate(); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	if e := os.MkdirAll(r.Config.OutDir, 0755); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	r.log.Info("run start", zap.String("version", Version), zap.String("out_dir", r.Config.OutDir))

	m, labels, e := r.Prepare()
	if e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	rec.GenesInput, rec.Samples = m.Dims()
	rec.Healthy, rec.LS = labels.Counts()

	r.log.Info("stage start", zap.String(stageFieldName, "normalize"))
	cs, e := Normalize(m, labels)
	if e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	rec.GenesTested, _ = cs.Matrix.Dims()
	r.log.Info("normalized", zap.Int("genes_kept", rec.GenesTested), zap.Float64s("norm_factors", cs.NormFactors))

	if e := r.explore(cs, &rec); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}

	r.log.Info("stage start", zap.String(stageFieldName, "differential"))
	t, v, e := DifferentialExpression(cs, labels)
	if e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	if e := r.report(cs, t, v, &rec); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	if e := r.enrich(ctx, t, &rec); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}

	rec.Finished = time.Now().UTC().Format(time.RFC3339)
	if e := WriteRunRecord(r.out(FileRunRecord), rec); e != nil {
		return rec, fmt.Errorf("Run.Execute: %w", e)
	}
	r.log.Info("run finished", zap.String(outputsFieldName, r.out(FileRunRecord)))
	return rec, nil
}

func WriteRunRecord(path string, rec RunRecord) error {
	data, e := yaml.Marshal(rec)
	if e != nil {
		return e
	}
	return os.WriteFile(path, data, 0644)
}

func ReadRunRecord(path string) (RunRecord, error) {
	data, e := os.ReadFile(path)
	if e != nil {
		return RunRecord{}, e
	}
	var rec RunRecord
	if e := yaml.Unmarshal(data, &rec); e != nil {
		return RunRecord{}, fmt.Errorf("ReadRunRecord: %w; %w", e, ErrParse)
	}
	return rec, nil
}
