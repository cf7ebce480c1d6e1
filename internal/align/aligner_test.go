package align

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

type fakeSource struct {
	name   string
	series model.Series
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchSeries(ctx context.Context) (model.Series, error) {
	f.calls++
	return f.series, f.err
}

func TestAlignerRun(t *testing.T) {
	production := &fakeSource{name: "eia", series: observed("production",
		model.Point{Time: date(2018, time.January, 1), Value: 100},
		model.Point{Time: date(2019, time.January, 1), Value: 140},
	)}
	level := &fakeSource{name: "worldbank", series: yearly("level", 1, map[int]float64{2018: 4, 2019: 5})}

	aligner := NewAligner(zerolog.Nop(), production, level)
	series, frame, err := aligner.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, series, 2)
	assert.Equal(t, []string{"production", "level"}, frame.Fields)
	require.Len(t, frame.Rows, 5)
	assert.InDelta(t, 120.0, frame.Rows[2].Values[0], 1e-9)
}

func TestAlignerStopsAtFirstFailure(t *testing.T) {
	broken := &fakeSource{name: "eia", err: errors.New("connection refused")}
	never := &fakeSource{name: "worldbank", series: yearly("level", 1, map[int]float64{2018: 4})}

	_, _, err := NewAligner(zerolog.Nop(), broken, never).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "eia")
	assert.Equal(t, 0, never.calls)
}

func TestAlignerEmptySourceIsUnavailable(t *testing.T) {
	empty := &fakeSource{name: "eia", series: model.Series{Field: "production"}}

	_, _, err := NewAligner(zerolog.Nop(), empty).Run(context.Background())
	assert.True(t, errors.Is(err, providers.ErrSourceUnavailable))
}

func TestAlignerKeepsSchemaErrors(t *testing.T) {
	bad := &fakeSource{name: "worldbank", err: providers.Malformed("worldbank", "row 0 has no date")}

	_, _, err := NewAligner(zerolog.Nop(), bad).Run(context.Background())
	assert.True(t, errors.Is(err, providers.ErrMalformedSchema))
	assert.False(t, errors.Is(err, providers.ErrSourceUnavailable))
}
