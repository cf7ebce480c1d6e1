package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghanaoil/internal/model"
)

func TestBuildMeta(t *testing.T) {
	created := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	run := model.Run{
		ID:        "run-1",
		CreatedAt: created,
		Series: []model.Series{{
			Source:      "eia",
			Field:       "eia_production",
			Granularity: model.PeriodYear,
			Points: []model.Point{
				{Time: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), Value: 35},
				{Time: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), Value: 38},
			},
		}},
		Frame: model.Frame{
			Fields: []string{"eia_production"},
			Rows: []model.Row{
				{Period: model.Quarter{Year: 2015, Q: 1}, Values: []float64{35000}},
				{Period: model.Quarter{Year: 2015, Q: 2}, Values: []float64{35750}},
			},
		},
	}

	meta := buildMeta(run, created.Add(time.Hour))

	assert.Equal(t, "2024-03-02T11:00:00Z", meta.GeneratedAt)
	assert.Equal(t, "2024-03-02T10:00:00Z", meta.CreatedAt)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, "2015-Q1", meta.FirstPeriod)
	assert.Equal(t, "2015-Q2", meta.LastPeriod)
	assert.Equal(t, []sourceMeta{{
		Source:       "eia",
		Field:        "eia_production",
		Granularity:  "Y",
		Observations: 2,
		FirstPeriod:  "2015-01-01",
		LastPeriod:   "2016-01-01",
	}}, meta.Sources)
}

func TestBuildRefusesMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ghanaoil.db")
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"build", "--db", db, "--out", filepath.Join(dir, "site")})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.Empty(t, stderr.String())

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr))
}
