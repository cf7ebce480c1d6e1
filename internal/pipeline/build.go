package pipeline

import (
	"strings"

	"github.com/rs/zerolog"

	"ghanaoil/internal/align"
	"ghanaoil/internal/config"
	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
	"ghanaoil/internal/providers/bulletin"
	"ghanaoil/internal/providers/eia"
	"ghanaoil/internal/providers/worldbank"
	"ghanaoil/internal/store"
	"ghanaoil/internal/store/sqlite"
)

// BuildSources wires the three sources in the order their fields appear in
// the output table.
func BuildSources(cfg *config.Config) ([]providers.Source, error) {
	client := providers.NewClient(providers.ClientConfig{
		Timeout:         cfg.HTTP.Timeout,
		UserAgent:       cfg.HTTP.UserAgent,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		MaxRetries:      cfg.HTTP.MaxRetries,
		RetryDelay:      cfg.HTTP.RetryDelay,
	})

	eiaSource, err := eia.New(eia.Config{
		BaseURL:  cfg.EIA.BaseURL,
		APIKey:   cfg.EIA.APIKey,
		SeriesID: cfg.EIA.SeriesID,
		Field:    cfg.EIA.Field,
		Limit:    cfg.EIA.Limit,
		Scale:    config.Scale(cfg.EIA.Unit),
		Resample: model.Resample(cfg.EIA.Resample),
	}, client)
	if err != nil {
		return nil, err
	}

	wbSource, err := worldbank.New(worldbank.Config{
		BaseURL:   cfg.WorldBank.BaseURL,
		Indicator: cfg.WorldBank.Indicator,
		Country:   cfg.WorldBank.Country,
		Field:     cfg.WorldBank.Field,
		PerPage:   cfg.WorldBank.PerPage,
		Scale:     config.Scale(cfg.WorldBank.Unit),
		Resample:  model.Resample(cfg.WorldBank.Resample),
	}, client)
	if err != nil {
		return nil, err
	}

	bulletinConfig := bulletin.Config{
		Field:    cfg.Bulletin.Field,
		Scale:    config.Scale(cfg.Bulletin.Unit),
		Resample: model.Resample(cfg.Bulletin.Resample),
	}
	var bulletinSource providers.Source
	switch strings.ToLower(cfg.Bulletin.Kind) {
	case "csv":
		bulletinSource = bulletin.NewCSVTable(bulletinConfig, cfg.Bulletin.Path, cfg.Bulletin.ValueColumn)
	default:
		bulletinSource = bulletin.NewStaticTable(bulletinConfig, nil)
	}

	return []providers.Source{eiaSource, wbSource, bulletinSource}, nil
}

func OpenStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

// FromConfig assembles a pipeline. The caller closes the returned store.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Pipeline, store.Store, error) {
	sources, err := BuildSources(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := OpenStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	output := Output{
		CSVPath:   cfg.Output.Path,
		XLSXPath:  cfg.Output.XLSXPath,
		IndexName: cfg.Output.IndexName,
	}
	return New(align.NewAligner(logger, sources...), st, output, logger), st, nil
}
