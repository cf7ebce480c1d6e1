package eia

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

const (
	defaultBaseURL  = "https://api.eia.gov/v2/"
	defaultSeriesID = "PET.MCRIPGT2.A"
	defaultField    = "eia_production"
	defaultLimit    = 100
	defaultScale    = 1000
	sourceName      = "eia"
)

// Config selects the EIA series. Limit keeps only the most recent
// observations; a negative Limit keeps all of them.
type Config struct {
	BaseURL  string
	APIKey   string
	SeriesID string
	Field    string
	Limit    int
	Scale    float64
	Resample model.Resample
}

// Provider reads one series from the EIA open-data API through the v2
// seriesid route, which also accepts legacy v1 series identifiers.
type Provider struct {
	config Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("eia: api key is required (EIA_API_KEY)")
	}
	if cfg.SeriesID == "" {
		cfg.SeriesID = defaultSeriesID
	}
	if cfg.Field == "" {
		cfg.Field = defaultField
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Scale == 0 {
		cfg.Scale = defaultScale
	}
	if cfg.Resample == "" {
		cfg.Resample = model.ResampleMean
	}
	if client == nil {
		client = providers.NewClient(providers.ClientConfig{})
	}
	return &Provider{config: cfg, client: client}, nil
}

func (p *Provider) Name() string {
	return sourceName
}

func (p *Provider) FetchSeries(ctx context.Context) (model.Series, error) {
	endpoint := p.config.BaseURL + "seriesid/" + url.PathEscape(p.config.SeriesID)
	params := url.Values{}
	params.Set("api_key", p.config.APIKey)

	body, err := p.client.Get(ctx, endpoint, params)
	if err != nil {
		return model.Series{}, providers.Unavailable(sourceName, err)
	}

	points, granularity, err := parseSeries(body)
	if err != nil {
		return model.Series{}, err
	}
	if len(points) == 0 {
		return model.Series{}, providers.Unavailable(sourceName, errors.Newf("no observations returned for %s", p.config.SeriesID))
	}
	if p.config.Limit > 0 && len(points) > p.config.Limit {
		points = points[len(points)-p.config.Limit:]
	}

	return model.Series{
		Source:      sourceName,
		Field:       p.config.Field,
		Granularity: granularity,
		Resample:    p.config.Resample,
		Scale:       p.config.Scale,
		Points:      points,
	}, nil
}

func parseSeries(body []byte) ([]model.Point, model.PeriodType, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, "", providers.Malformed(sourceName, "decode response: %v", err)
	}

	if message, ok := errorMessage(payload); ok {
		return nil, "", providers.Unavailable(sourceName, errors.Newf("api error: %s", message))
	}

	if response, ok := payload["response"].(map[string]any); ok {
		rows, ok := response["data"].([]any)
		if !ok {
			return nil, "", providers.Malformed(sourceName, "response.data is missing")
		}
		return parseRows(rows)
	}
	if series, ok := payload["series"].([]any); ok {
		return parseLegacySeries(series)
	}
	return nil, "", providers.Malformed(sourceName, "payload has neither response.data nor series")
}

func errorMessage(payload map[string]any) (string, bool) {
	raw, ok := payload["error"]
	if !ok {
		if data, isMap := payload["data"].(map[string]any); isMap {
			raw, ok = data["error"]
		}
	}
	if !ok || raw == nil {
		return "", false
	}
	switch typed := raw.(type) {
	case string:
		return typed, true
	case map[string]any:
		if message, ok := providers.GetString(typed, "message"); ok {
			return message, true
		}
	}
	return "unknown error", true
}

func parseRows(rows []any) ([]model.Point, model.PeriodType, error) {
	points := make([]model.Point, 0, len(rows))
	types := make([]model.PeriodType, 0, len(rows))
	for i, item := range rows {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, "", providers.Malformed(sourceName, "row %d is not an object", i)
		}
		period, ok := providers.GetString(row, "period")
		if !ok {
			return nil, "", providers.Malformed(sourceName, "row %d has no period", i)
		}
		value, present, numeric := providers.GetFloat(row, "value")
		if !present {
			return nil, "", providers.Malformed(sourceName, "row %d has no value", i)
		}
		if !numeric {
			continue
		}
		point, periodType, err := toPoint(period, value)
		if err != nil {
			return nil, "", err
		}
		points = append(points, point)
		types = append(types, periodType)
	}
	return providers.SortPoints(points), providers.Coarsest(types), nil
}

func parseLegacySeries(series []any) ([]model.Point, model.PeriodType, error) {
	if len(series) == 0 {
		return nil, "", nil
	}
	first, ok := series[0].(map[string]any)
	if !ok {
		return nil, "", providers.Malformed(sourceName, "series[0] is not an object")
	}
	data, ok := first["data"].([]any)
	if !ok {
		return nil, "", providers.Malformed(sourceName, "series[0].data is missing")
	}

	points := make([]model.Point, 0, len(data))
	types := make([]model.PeriodType, 0, len(data))
	for i, item := range data {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			return nil, "", providers.Malformed(sourceName, "data[%d] is not a [period, value] pair", i)
		}
		period, ok := pair[0].(string)
		if !ok {
			return nil, "", providers.Malformed(sourceName, "data[%d] period is not a string", i)
		}
		value, ok := providers.ToFloat(pair[1])
		if !ok {
			continue
		}
		point, periodType, err := toPoint(period, value)
		if err != nil {
			return nil, "", err
		}
		points = append(points, point)
		types = append(types, periodType)
	}
	return providers.SortPoints(points), providers.Coarsest(types), nil
}

func toPoint(period string, value float64) (model.Point, model.PeriodType, error) {
	t, periodType, ok := model.ParsePeriod(period)
	if !ok {
		return model.Point{}, "", providers.Malformed(sourceName, "unrecognized period %q", period)
	}
	return model.Point{Time: t, Value: value}, periodType, nil
}

var _ providers.Source = (*Provider)(nil)
