package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ghanaoil/internal/export"
	"ghanaoil/internal/logger"
	"ghanaoil/internal/model"
	"ghanaoil/internal/store"
	"ghanaoil/internal/store/sqlite"
)

type metaFile struct {
	GeneratedAt string       `json:"generated_at"`
	RunID       string       `json:"run_id"`
	CreatedAt   string       `json:"created_at"`
	Fields      []string     `json:"fields"`
	Rows        int          `json:"rows"`
	FirstPeriod string       `json:"first_period"`
	LastPeriod  string       `json:"last_period"`
	Sources     []sourceMeta `json:"sources"`
}

type sourceMeta struct {
	Source       string `json:"source"`
	Field        string `json:"field"`
	Granularity  string `json:"granularity"`
	Observations int    `json:"observations"`
	FirstPeriod  string `json:"first_period,omitempty"`
	LastPeriod   string `json:"last_period,omitempty"`
}

var (
	outDir    string
	dbPath    string
	indexName string
)

var rootCmd = &cobra.Command{
	Use:           "publisher",
	Short:         "Publish the latest archived run",
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Write the latest run's quarterly table and metadata",
	SilenceUsage: true,
	RunE:         runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&outDir, "out", "site/data", "output directory")
	buildCmd.Flags().StringVar(&dbPath, "db", "ghanaoil.db", "sqlite database path")
	buildCmd.Flags().StringVar(&indexName, "index-name", "period", "name of the period column")
	rootCmd.AddCommand(buildCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "publisher build failed:", err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	log, closer, err := logger.New(logger.Config{Level: "info", Format: "console"})
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := openArchive(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.LatestRun(context.Background())
	if errors.Is(err, store.ErrNoRuns) {
		return errors.Newf("%s has no runs; run the collector first", dbPath)
	}
	if err != nil {
		return errors.Wrap(err, "load latest run")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	if err := export.WriteCSV(filepath.Join(outDir, "ghana_oil_quarterly.csv"), run.Frame, indexName); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := writeJSON(filepath.Join(outDir, "meta.json"), buildMeta(run, now)); err != nil {
		return errors.Wrap(err, "write meta.json")
	}

	logRun(log, run, outDir)
	return nil
}

// openArchive opens an existing run database; it never creates one.
func openArchive(path string) (*sqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.Newf("%s does not exist; run `collector run --db %s` first", path, path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.Newf("%s is a directory", path)
	}
	return sqlite.New(path)
}

func buildMeta(run model.Run, now time.Time) metaFile {
	meta := metaFile{
		GeneratedAt: now.Format(time.RFC3339),
		RunID:       run.ID,
		CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
		Fields:      run.Frame.Fields,
		Rows:        len(run.Frame.Rows),
		Sources:     make([]sourceMeta, 0, len(run.Series)),
	}
	if n := len(run.Frame.Rows); n > 0 {
		meta.FirstPeriod = run.Frame.Rows[0].Period.Label()
		meta.LastPeriod = run.Frame.Rows[n-1].Period.Label()
	}
	for _, series := range run.Series {
		entry := sourceMeta{
			Source:       series.Source,
			Field:        series.Field,
			Granularity:  string(series.Granularity),
			Observations: len(series.Points),
		}
		if n := len(series.Points); n > 0 {
			entry.FirstPeriod = series.Points[0].Time.Format(time.DateOnly)
			entry.LastPeriod = series.Points[n-1].Time.Format(time.DateOnly)
		}
		meta.Sources = append(meta.Sources, entry)
	}
	return meta
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func logRun(log zerolog.Logger, run model.Run, out string) {
	log.Info().
		Str("run_id", run.ID).
		Int("rows", len(run.Frame.Rows)).
		Str("out", out).
		Msg("publisher build complete")
}
