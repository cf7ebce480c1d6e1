package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"ghanaoil/internal/config"
	"ghanaoil/internal/logger"
	"ghanaoil/internal/pipeline"
)

var (
	configPath string
	outPath    string
	xlsxPath   string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "collector",
	Short:         "Collect Ghana oil series into a quarterly table",
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch every source, align them by quarter and write the table",
	Long: `Fetch the EIA production series, the World Bank indicator and the OPEC
bulletin table, align them on a quarterly axis and write the result as CSV.

Examples:
  collector run --config configs/config.yaml
  EIA_API_KEY=... collector run --out data/raw_ghana_oil.csv --db ghanaoil.db`,
	SilenceUsage: true,
	RunE:         runCollector,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config (empty = defaults and environment)")
	runCmd.Flags().StringVar(&outPath, "out", "", "CSV output path (overrides config)")
	runCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write an XLSX workbook to this path")
	runCmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path for the run archive")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "log at debug level")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

func runCollector(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	log, closer, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	p, st, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return errors.Wrap(err, "build pipeline")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := p.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", run.ID).
		Int("rows", len(run.Frame.Rows)).
		Str("out", cfg.Output.Path).
		Msg("collector run complete")
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Path = outPath
	}
	if flags.Changed("xlsx") {
		cfg.Output.XLSXPath = xlsxPath
	}
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}
