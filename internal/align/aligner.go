package align

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

// Aligner fetches every source in order and merges the results. It keeps no
// state between calls to Run.
type Aligner struct {
	sources []providers.Source
	logger  zerolog.Logger
}

func NewAligner(logger zerolog.Logger, sources ...providers.Source) *Aligner {
	return &Aligner{
		sources: sources,
		logger:  logger.With().Str("component", "aligner").Logger(),
	}
}

// Run returns the fetched series alongside the merged frame. The first
// failing source aborts the run.
func (a *Aligner) Run(ctx context.Context) ([]model.Series, model.Frame, error) {
	if len(a.sources) == 0 {
		return nil, model.Frame{}, errors.Wrap(ErrEmptyResult, "no sources configured")
	}

	series := make([]model.Series, 0, len(a.sources))
	for _, source := range a.sources {
		fetched, err := a.fetch(ctx, source)
		if err != nil {
			return nil, model.Frame{}, err
		}
		series = append(series, fetched)
	}

	frame, err := Align(series)
	if err != nil {
		return nil, model.Frame{}, err
	}
	a.logger.Info().
		Int("rows", len(frame.Rows)).
		Strs("fields", frame.Fields).
		Str("first", frame.Rows[0].Period.Label()).
		Str("last", frame.Rows[len(frame.Rows)-1].Period.Label()).
		Msg("aligned quarterly frame")
	return series, frame, nil
}

func (a *Aligner) fetch(ctx context.Context, source providers.Source) (model.Series, error) {
	logger := a.logger.With().Str("source", source.Name()).Logger()
	logger.Debug().Msg("fetching series")

	series, err := source.FetchSeries(ctx)
	if err != nil {
		if !errors.Is(err, providers.ErrSourceUnavailable) && !errors.Is(err, providers.ErrMalformedSchema) {
			err = providers.Unavailable(source.Name(), err)
		}
		logger.Error().Err(err).Msg("fetch failed")
		return model.Series{}, err
	}
	if len(series.Points) == 0 {
		err := providers.Unavailable(source.Name(), errors.New("empty response"))
		logger.Error().Err(err).Msg("fetch failed")
		return model.Series{}, err
	}
	if series.Source == "" {
		series.Source = source.Name()
	}

	logger.Info().
		Str("field", series.Field).
		Int("points", len(series.Points)).
		Str("granularity", string(series.Granularity)).
		Msg("fetched series")
	return series, nil
}
