package lsrna

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DataEnv names the environment variable holding the reference data
// directory.
const DataEnv = "LSRNA_DATA"

// DefaultDataDir is used when neither the config nor the environment names
// a data directory.
const DefaultDataDir = "./data"

type GeneSetConfig struct {
	// GO and Hallmark are GMT sources: local paths, relative to the data
	// directory, or http(s) URLs. Empty disables the matching analysis.
	GO       string `yaml:"go"`
	Hallmark string `yaml:"hallmark"`
	// IDMap optionally translates matrix gene ids to gene set symbols.
	IDMap        string `yaml:"id_map"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

type Config struct {
	Input         string `yaml:"input"`
	OutDir        string `yaml:"out_dir"`
	SampleSheet   string `yaml:"sample_sheet"`
	HealthyPrefix string `yaml:"healthy_prefix"`
	DataDir       string `yaml:"data_dir"`
	LogLevel      string `yaml:"log_level"`

	Export   ExportPolicy  `yaml:"export"`
	TSNE     TSNEParams    `yaml:"tsne"`
	ORA      ORAParams     `yaml:"ora"`
	GSEA     GSEAParams    `yaml:"gsea"`
	GeneSets GeneSetConfig `yaml:"gene_sets"`
}

func DefaultConfig() *Config {
	return &Config{
		OutDir:        "results",
		HealthyPrefix: DefaultHealthyPrefix,
		LogLevel:      "info",
		Export:        DefaultExportPolicy(),
		TSNE:          DefaultTSNEParams(),
		ORA:           DefaultORAParams(),
		GSEA:          DefaultGSEAParams(),
		GeneSets: GeneSetConfig{
			GO:           "c5.go.bp.v2023.2.Hs.symbols.gmt",
			Hallmark:     "h.all.v2023.2.Hs.symbols.gmt",
			FetchTimeout: "60s",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, e := os.ReadFile(path)
		if e != nil {
			return nil, fmt.Errorf("LoadConfig: %w", e)
		}
		if e := yaml.Unmarshal(data, cfg); e != nil {
			return nil, fmt.Errorf("LoadConfig: %v: %w", path, e)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides fills the data directory from the environment when the
// config leaves it empty.
func (c *Config) applyEnvOverrides() {
	if c.DataDir == "" {
		c.DataDir = os.Getenv(DataEnv)
	}
}

func (c *Config) Save(path string) error {
	if e := os.MkdirAll(filepath.Dir(path), 0755); e != nil {
		return fmt.Errorf("Config.Save: %w", e)
	}
	data, e := yaml.Marshal(c)
	if e != nil {
		return fmt.Errorf("Config.Save: %w", e)
	}
	if e := os.WriteFile(path, data, 0644); e != nil {
		return fmt.Errorf("Config.Save: %w", e)
	}
	return nil
}

func (c *Config) GetFetchTimeout() time.Duration {
	d, e := time.ParseDuration(c.GeneSets.FetchTimeout)
	if e != nil {
		return 60 * time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("Config.Validate: no input matrix; %w", ErrParse)
	}
	if c.OutDir == "" {
		return fmt.Errorf("Config.Validate: no output directory; %w", ErrParse)
	}
	if c.SampleSheet == "" && c.HealthyPrefix == "" {
		return fmt.Errorf("Config.Validate: neither sample sheet nor healthy prefix; %w", ErrParse)
	}
	if e := c.Export.Validate(); e != nil {
		return fmt.Errorf("Config.Validate: %w", e)
	}
	if e := c.ORA.Validate(); e != nil {
		return fmt.Errorf("Config.Validate: %w", e)
	}
	if e := c.GSEA.Validate(); e != nil {
		return fmt.Errorf("Config.Validate: %w", e)
	}
	if c.TSNE.Perplexity <= 0 || c.TSNE.Iterations < 1 || c.TSNE.LearningRate <= 0 {
		return fmt.Errorf("Config.Validate: t-SNE %+v; %w", c.TSNE, ErrParse)
	}
	if _, e := time.ParseDuration(c.GeneSets.FetchTimeout); e != nil {
		return fmt.Errorf("Config.Validate: fetch_timeout: %w; %w", e, ErrParse)
	}
	return nil
}
