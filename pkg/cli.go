package lsrna

import (
	"fmt"
	"io"

	"github.com/jgbaldwinbrown/lsrna/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	config      string
	input       string
	out         string
	sampleSheet string
	prefix      string
	seed        uint64
	logLevel    string
}

// applyFlags overrides cfg with every flag the user actually set.
func applyFlags(cmd *cobra.Command, f runFlags, cfg *Config) {
	fl := cmd.Flags()
	if fl.Changed("input") {
		cfg.Input = f.input
	}
	if fl.Changed("out") {
		cfg.OutDir = f.out
	}
	if fl.Changed("sample-sheet") {
		cfg.SampleSheet = f.sampleSheet
	}
	if fl.Changed("prefix") {
		cfg.HealthyPrefix = f.prefix
	}
	if fl.Changed("seed") {
		cfg.TSNE.Seed = f.seed
		cfg.GSEA.Seed = f.seed
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newRunCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full HC vs LS pipeline",
		Long: `Load the expression matrix, impute, normalize with TMM, explore with
PCA and t-SNE, test with voom/limma, export gene lists and plots, and run
GO over-representation and Hallmark GSEA.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, e := LoadConfig(f.config)
			if e != nil {
				return e
			}
			applyFlags(cmd, *f, cfg)
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != f.logLevel {
				level, e := logger.ParseLevel(cfg.LogLevel)
				if e != nil {
					return fmt.Errorf("log_level: %w", e)
				}
				if e := logger.InitLogger(level); e != nil {
					return e
				}
			}
			if cfg.DataDir == "" {
				logger.Warn("No data directory configured ("+DataEnv+"), using default value", zap.String("data_dir", DefaultDataDir))
				cfg.DataDir = DefaultDataDir
			}
			rec, e := NewRun(*cfg).Execute(cmd.Context())
			if e != nil {
				return e
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %v: %v significant genes (%v up, %v down), outputs in %v\n",
				rec.RunID, rec.Significant, rec.Up, rec.Down, cfg.OutDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Gene-by-sample expression matrix (.csv, .tsv, optionally .gz)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "results", "Output directory")
	cmd.Flags().StringVar(&f.sampleSheet, "sample-sheet", "", "sample,condition table; overrides prefix labelling")
	cmd.Flags().StringVar(&f.prefix, "prefix", DefaultHealthyPrefix, "Sample name prefix marking healthy controls")
	cmd.Flags().Uint64Var(&f.seed, "seed", DefaultTSNEParams().Seed, "Random seed for t-SNE and GSEA permutations")
	return cmd
}

func writeLabels(w io.Writer, t SampleTable) error {
	for _, r := range t.Records {
		if _, e := fmt.Fprintf(w, "%v\t%v\n", r.Sample, r.Condition); e != nil {
			return e
		}
	}
	return nil
}

func newLabelsCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the condition assigned to every sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, e := LoadConfig(f.config)
			if e != nil {
				return e
			}
			applyFlags(cmd, *f, cfg)
			m, e := LoadMatrix(cfg.Input)
			if e != nil {
				return e
			}
			t, e := NewRun(*cfg).Labels(m.Samples)
			if e != nil {
				return e
			}
			return writeLabels(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Gene-by-sample expression matrix")
	cmd.Flags().StringVar(&f.sampleSheet, "sample-sheet", "", "sample,condition table")
	cmd.Flags().StringVar(&f.prefix, "prefix", DefaultHealthyPrefix, "Sample name prefix marking healthy controls")
	return cmd
}

func NewRootCmd() *cobra.Command {
	var f runFlags
	root := &cobra.Command{
		Use:           "lsrna",
		Short:         "Differential expression of localized scleroderma against healthy skin",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if e := godotenv.Load(); e != nil {
				defer logger.Warn("No .env found, using local environment")
			}
			level, e := logger.ParseLevel(f.logLevel)
			if e != nil {
				return fmt.Errorf("--log-level: %w", e)
			}
			return logger.InitLogger(level)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(newRunCmd(&f), newLabelsCmd(&f), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lsrna", Version)
		},
	})
	return root
}
