package worldbank

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

const (
	defaultBaseURL   = "https://api.worldbank.org/v2/"
	defaultIndicator = "EG.EGY.PRIM.PP.KD"
	defaultCountry   = "GHA"
	defaultField     = "wb_energy_intensity"
	defaultPerPage   = 1000
	maxPages         = 50
	sourceName       = "worldbank"
)

type Config struct {
	BaseURL   string
	Indicator string
	Country   string
	Field     string
	PerPage   int
	Scale     float64
	Resample  model.Resample
}

type Provider struct {
	config Config
	client *providers.Client
}

func New(cfg Config, client *providers.Client) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if cfg.Indicator == "" {
		cfg.Indicator = defaultIndicator
	}
	if cfg.Country == "" {
		cfg.Country = defaultCountry
	}
	if cfg.Field == "" {
		cfg.Field = defaultField
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Resample == "" {
		cfg.Resample = model.ResampleFFill
	}
	if client == nil {
		client = providers.NewClient(providers.ClientConfig{})
	}
	return &Provider{config: cfg, client: client}, nil
}

func (p *Provider) Name() string {
	return sourceName
}

// FetchSeries walks every page of the indicator and drops years without a value.
func (p *Provider) FetchSeries(ctx context.Context) (model.Series, error) {
	endpoint := p.config.BaseURL + "country/" + url.PathEscape(p.config.Country) +
		"/indicator/" + url.PathEscape(p.config.Indicator)

	points := make([]model.Point, 0)
	types := make([]model.PeriodType, 0)
	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("format", "json")
		params.Set("per_page", strconv.Itoa(p.config.PerPage))
		params.Set("page", strconv.Itoa(page))

		body, err := p.client.Get(ctx, endpoint, params)
		if err != nil {
			return model.Series{}, providers.Unavailable(sourceName, err)
		}
		pagePoints, pageTypes, pages, err := parsePage(body)
		if err != nil {
			return model.Series{}, err
		}
		points = append(points, pagePoints...)
		types = append(types, pageTypes...)
		if page >= pages {
			break
		}
	}

	if len(points) == 0 {
		return model.Series{}, providers.Unavailable(sourceName, errors.Newf("no observations for %s/%s", p.config.Country, p.config.Indicator))
	}

	return model.Series{
		Source:      sourceName,
		Field:       p.config.Field,
		Granularity: providers.Coarsest(types),
		Resample:    p.config.Resample,
		Scale:       p.config.Scale,
		Points:      providers.SortPoints(points),
	}, nil
}

type pageMeta struct {
	Page    json.Number `json:"page"`
	Pages   json.Number `json:"pages"`
	Total   json.Number `json:"total"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

// parsePage decodes one `[meta, rows]` response page and reports the total
// page count.
func parsePage(body []byte) ([]model.Point, []model.PeriodType, int, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload []json.RawMessage
	if err := decoder.Decode(&payload); err != nil {
		return nil, nil, 0, providers.Malformed(sourceName, "decode response: %v", err)
	}
	if len(payload) == 0 {
		return nil, nil, 0, providers.Malformed(sourceName, "empty response envelope")
	}

	var meta pageMeta
	if err := json.Unmarshal(payload[0], &meta); err != nil {
		return nil, nil, 0, providers.Malformed(sourceName, "decode page metadata: %v", err)
	}
	if len(meta.Message) > 0 {
		return nil, nil, 0, providers.Unavailable(sourceName, errors.Newf("api error: %s", strings.TrimSpace(meta.Message[0].Value)))
	}
	pages := 1
	if parsed, err := strconv.Atoi(meta.Pages.String()); err == nil && parsed > 0 {
		pages = parsed
	}
	if len(payload) < 2 || string(bytes.TrimSpace(payload[1])) == "null" {
		return nil, nil, pages, nil
	}

	rowDecoder := json.NewDecoder(bytes.NewReader(payload[1]))
	rowDecoder.UseNumber()
	var rows []map[string]any
	if err := rowDecoder.Decode(&rows); err != nil {
		return nil, nil, 0, providers.Malformed(sourceName, "decode rows: %v", err)
	}

	points := make([]model.Point, 0, len(rows))
	types := make([]model.PeriodType, 0, len(rows))
	for i, row := range rows {
		date, ok := providers.GetString(row, "date")
		if !ok {
			return nil, nil, 0, providers.Malformed(sourceName, "row %d has no date", i)
		}
		value, present, numeric := providers.GetFloat(row, "value")
		if !present {
			return nil, nil, 0, providers.Malformed(sourceName, "row %d has no value", i)
		}
		if !numeric {
			continue
		}
		t, periodType, ok := model.ParsePeriod(date)
		if !ok {
			return nil, nil, 0, providers.Malformed(sourceName, "unrecognized date %q", date)
		}
		points = append(points, model.Point{Time: t, Value: value})
		types = append(types, periodType)
	}
	return points, types, pages, nil
}

var _ providers.Source = (*Provider)(nil)
