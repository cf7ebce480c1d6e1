package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghanaoil/internal/align"
	"ghanaoil/internal/config"
	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
	"ghanaoil/internal/providers/bulletin"
	"ghanaoil/internal/store"
	"ghanaoil/internal/store/sqlite"
)

type failingStore struct{}

func (failingStore) SaveRun(ctx context.Context, run model.Run) error {
	return errors.New("disk full")
}

func (failingStore) LatestRun(ctx context.Context) (model.Run, error) {
	return model.Run{}, store.ErrNoRuns
}

func (failingStore) Close() error {
	return nil
}

func eiaServer(t *testing.T, rows string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seriesid/PET.MCRIPGT2.A", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprintf(w, `{"response":{"total":"7","data":[%s]}}`, rows)
	}))
	t.Cleanup(server.Close)
	return server
}

func worldBankServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country/GHA/indicator/EG.EGY.PRIM.PP.KD", r.URL.Path)
		rows := make([]string, 0)
		for year := 2020; year >= 2010; year-- {
			value := fmt.Sprintf("%d.5", year-2010)
			if year == 2012 {
				value = "null"
			}
			rows = append(rows, fmt.Sprintf(`{"date":"%d","value":%s}`, year, value))
		}
		fmt.Fprintf(w, `[{"page":1,"pages":1,"per_page":1000,"total":11},[%s]]`, strings.Join(rows, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func loadConfig(t *testing.T, eiaURL, wbURL, dir string) *config.Config {
	t.Helper()
	t.Setenv("EIA_API_KEY", "test-key")
	body := fmt.Sprintf(`
eia:
  base_url: %s
worldbank:
  base_url: %s
output:
  path: %s
  xlsx_path: %s
store:
  path: %s
http:
  rate_limit_per_sec: 0
`, eiaURL, wbURL,
		filepath.Join(dir, "data", "raw_ghana_oil.csv"),
		filepath.Join(dir, "data", "raw_ghana_oil.xlsx"),
		filepath.Join(dir, "runs.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func annualRows(from, to int, base float64) string {
	rows := make([]string, 0)
	for year := to; year >= from; year-- {
		rows = append(rows, fmt.Sprintf(`{"period":"%d","value":%g}`, year, base+float64(year-from)*4))
	}
	return strings.Join(rows, ",")
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, eiaServer(t, annualRows(2014, 2020, 100)).URL, worldBankServer(t).URL, dir)

	p, st, err := FromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	run, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"eia_production", "wb_energy_intensity", "opec_production"}, run.Frame.Fields)
	require.Len(t, run.Frame.Rows, 21)
	assert.Equal(t, "2015-Q1", run.Frame.Rows[0].Period.Label())
	assert.Equal(t, "2020-Q1", run.Frame.Rows[20].Period.Label())
	assert.Equal(t, []float64{104000, 5.5, 35400}, run.Frame.Rows[0].Values)
	assert.InDelta(t, 105000.0, run.Frame.Rows[1].Values[0], 1e-6)

	csvBytes, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvBytes)), "\n")
	require.Len(t, lines, 22)
	assert.Equal(t, "period,eia_production,wb_energy_intensity,opec_production", lines[0])
	assert.Equal(t, "2015-01-01,104000,5.5,35400", lines[1])

	_, err = os.Stat(cfg.Output.XLSXPath)
	assert.NoError(t, err)

	stored, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
	assert.Equal(t, run.Frame, stored.Frame)
}

func TestPipelineRunTwiceWritesIdenticalFile(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, eiaServer(t, annualRows(2014, 2020, 100)).URL, worldBankServer(t).URL, dir)
	cfg.Store.Path = ""
	cfg.Output.XLSXPath = ""

	p, st, err := FromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPipelineEmptyEnergyResponseWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, eiaServer(t, "").URL, worldBankServer(t).URL, dir)

	p, st, err := FromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrSourceUnavailable))

	_, statErr := os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.Output.XLSXPath)
	assert.True(t, os.IsNotExist(statErr))

	db, err := sqlite.New(cfg.Store.Path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.LatestRun(context.Background())
	assert.Error(t, err)
}

func TestPipelineStoreFailureLeavesNoOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	output := Output{
		CSVPath:  filepath.Join(dir, "raw_ghana_oil.csv"),
		XLSXPath: filepath.Join(dir, "raw_ghana_oil.xlsx"),
	}
	aligner := align.NewAligner(zerolog.Nop(), bulletin.NewStaticTable(bulletin.Config{}, nil))

	_, err := New(aligner, failingStore{}, output, zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineStoreFailureKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw_ghana_oil.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("previous\n"), 0o644))
	aligner := align.NewAligner(zerolog.Nop(), bulletin.NewStaticTable(bulletin.Config{}, nil))

	_, err := New(aligner, failingStore{}, Output{CSVPath: csvPath}, zerolog.Nop()).Run(context.Background())
	require.Error(t, err)

	body, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(body))
}
