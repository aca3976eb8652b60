// Package app is the inspectmetrics command line.
package app

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"inspectmetrics/internal/config"
	"inspectmetrics/internal/engine"
	"inspectmetrics/internal/httpx"
	"inspectmetrics/internal/storage/sqlite"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	formatJSON  = "json"
	formatTable = "table"
)

type globalFlags struct {
	configPath string
	format     string
}

func Main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "inspectmetrics",
		Short: "Quality and automation metrics for inspection classification models",
		Long: "inspectmetrics computes accuracy, auto-classification, distribution,\n" +
			"cohort, classwise and confusion metrics over annotated inspection files.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if g.configPath != "" {
				if err := os.Setenv("CONFIG_PATH", g.configPath); err != nil {
					return err
				}
			}
			if g.format != formatJSON && g.format != formatTable {
				return fmt.Errorf("--format must be %s or %s, got %q", formatJSON, formatTable, g.format)
			}
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "Config file (default config.yaml or $CONFIG_PATH)")
	f.StringVar(&g.format, "format", formatJSON, "Output format: json or table")

	root.AddCommand(newInitDBCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newUseCasesCmd(g))
	root.AddCommand(newFieldsCmd(g))
	root.AddCommand(newAccuracyCmd(g))
	root.AddCommand(newAutoClassCmd(g))
	root.AddCommand(newDistributionCmd(g))
	root.AddCommand(newCohortCmd(g))
	root.AddCommand(newClasswiseCmd(g))
	root.AddCommand(newConfusionCmd(g))
	root.AddCommand(newDigestCmd())
	root.AddCommand(newServeCmd())
	return root
}

type runtime struct {
	cfg    config.Config
	db     *sql.DB
	engine *engine.Engine
}

func (r *runtime) Close() error { return r.db.Close() }

func openRuntime() (*runtime, error) {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. DB=%s Timezone=%s RankBreakpoints=%v DigestSchedule=%q DigestUnit=%s LLMProvider=%s ExternalHTTPTimeout=%s",
		cfg.DBPath,
		cfg.Timezone,
		cfg.RankBreakpoints,
		cfg.DigestSchedule,
		cfg.DigestUnit,
		cfg.LLMProvider,
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	eng := engine.New(db, engine.Options{
		RankBreakpoints: cfg.RankBreakpoints,
		Location:        cfg.Location,
	})
	return &runtime{cfg: cfg, db: db, engine: eng}, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
