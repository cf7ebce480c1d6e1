package align

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func yearly(field string, scale float64, values map[int]float64) model.Series {
	points := make([]model.Point, 0, len(values))
	for year := 1990; year <= 2100; year++ {
		if value, ok := values[year]; ok {
			points = append(points, model.Point{Time: date(year, time.January, 1), Value: value})
		}
	}
	return model.Series{
		Source:      "test",
		Field:       field,
		Granularity: model.PeriodYear,
		Resample:    model.ResampleFFill,
		Scale:       scale,
		Points:      points,
	}
}

func observed(field string, points ...model.Point) model.Series {
	return model.Series{
		Source:      "test",
		Field:       field,
		Granularity: model.PeriodDay,
		Resample:    model.ResampleMean,
		Points:      points,
	}
}

func periods(frame model.Frame) []string {
	out := make([]string, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		out = append(out, row.Period.Label())
	}
	return out
}

func TestAlignThreeSourceScenario(t *testing.T) {
	production := observed("production",
		model.Point{Time: date(2015, time.January, 15), Value: 9},
		model.Point{Time: date(2015, time.February, 15), Value: 11},
		model.Point{Time: date(2015, time.May, 1), Value: 12},
	)
	indicator := model.Series{
		Source:      "test",
		Field:       "indicator",
		Granularity: model.PeriodQuarter,
		Resample:    model.ResampleFFill,
		Points: []model.Point{
			{Time: date(2015, time.January, 1), Value: 5},
			{Time: date(2015, time.July, 1), Value: 5},
		},
	}
	bulletin := yearly("bulletin", 1000, map[int]float64{2015: 35.4})

	frame, err := Align([]model.Series{production, indicator, bulletin})
	require.NoError(t, err)

	assert.Equal(t, []string{"production", "indicator", "bulletin"}, frame.Fields)
	assert.Equal(t, []string{"2015-Q1", "2015-Q2"}, periods(frame))
	assert.Equal(t, []float64{10, 5, 35400}, frame.Rows[0].Values)
	assert.Equal(t, []float64{12, 5, 35400}, frame.Rows[1].Values)
}

func TestAlignInterpolatesInteriorGaps(t *testing.T) {
	production := observed("production",
		model.Point{Time: date(2016, time.February, 1), Value: 10},
		model.Point{Time: date(2016, time.August, 1), Value: 14},
		model.Point{Time: date(2017, time.February, 1), Value: 20},
	)
	level := yearly("level", 1, map[int]float64{2016: 1, 2017: 2})

	frame, err := Align([]model.Series{production, level})
	require.NoError(t, err)

	assert.Equal(t, []string{"2016-Q1", "2016-Q2", "2016-Q3", "2016-Q4", "2017-Q1"}, periods(frame))
	got := make([]float64, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		got = append(got, row.Values[0])
	}
	assert.InDeltaSlice(t, []float64{10, 12, 14, 17, 20}, got, 1e-9)
	assert.Equal(t, 1.0, frame.Rows[3].Values[1])
	assert.Equal(t, 2.0, frame.Rows[4].Values[1])
}

func TestAlignDropsRowsThatNeedExtrapolation(t *testing.T) {
	level := yearly("level", 1, map[int]float64{2015: 1, 2016: 2})
	production := observed("production",
		model.Point{Time: date(2015, time.August, 1), Value: 3},
		model.Point{Time: date(2016, time.March, 1), Value: 5},
	)

	frame, err := Align([]model.Series{level, production})
	require.NoError(t, err)

	assert.Equal(t, []string{"2015-Q3", "2015-Q4", "2016-Q1"}, periods(frame))
	assert.InDelta(t, 4.0, frame.Rows[1].Values[1], 1e-9)
}

func TestAlignInterpolatesQuartersWithoutObservations(t *testing.T) {
	production := observed("production",
		model.Point{Time: date(2015, time.January, 1), Value: 0},
		model.Point{Time: date(2016, time.January, 1), Value: 8},
	)
	level := model.Series{
		Source:      "test",
		Field:       "level",
		Granularity: model.PeriodQuarter,
		Resample:    model.ResampleMean,
		Points: []model.Point{
			{Time: date(2015, time.January, 1), Value: 1},
			{Time: date(2016, time.January, 1), Value: 1},
		},
	}

	frame, err := Align([]model.Series{production, level})
	require.NoError(t, err)
	require.Len(t, frame.Rows, 5)
	assert.InDelta(t, 4.0, frame.Rows[2].Values[0], 1e-9)
}

func TestAlignPeriodsStrictlyAscending(t *testing.T) {
	production := observed("production",
		model.Point{Time: date(2012, time.March, 3), Value: 1},
		model.Point{Time: date(2013, time.June, 9), Value: 2},
		model.Point{Time: date(2018, time.December, 31), Value: 3},
	)
	level := yearly("level", 1, map[int]float64{2010: 1, 2014: 2, 2019: 3})

	frame, err := Align([]model.Series{production, level})
	require.NoError(t, err)
	for i := 1; i < len(frame.Rows); i++ {
		assert.True(t, frame.Rows[i-1].Period.Before(frame.Rows[i].Period))
		assert.Equal(t, 1, frame.Rows[i].Period.Index()-frame.Rows[i-1].Period.Index())
	}
}

func TestAlignIsDeterministic(t *testing.T) {
	input := []model.Series{
		observed("production",
			model.Point{Time: date(2015, time.January, 1), Value: 1.1},
			model.Point{Time: date(2017, time.October, 1), Value: 7.3},
		),
		yearly("level", 1000, map[int]float64{2015: 35.4, 2016: 38.2, 2017: 41.1}),
	}

	first, err := Align(input)
	require.NoError(t, err)
	second, err := Align(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAlignScalesThousands(t *testing.T) {
	frame, err := Align([]model.Series{yearly("opec", 1000, map[int]float64{2015: 35.4, 2016: 38.2})})
	require.NoError(t, err)
	require.Len(t, frame.Rows, 8)
	assert.Equal(t, 35400.0, frame.Rows[0].Values[0])
	assert.Equal(t, 38200.0, frame.Rows[7].Values[0])
}

func TestAlignEmptyResult(t *testing.T) {
	old := yearly("old", 1, map[int]float64{2010: 1})
	recent := observed("recent", model.Point{Time: date(2015, time.May, 5), Value: 2})

	_, err := Align([]model.Series{old, recent})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
}

func TestAlignRejectsBadInput(t *testing.T) {
	unsorted := observed("production",
		model.Point{Time: date(2016, time.January, 1), Value: 1},
		model.Point{Time: date(2015, time.January, 1), Value: 2},
	)
	_, err := Align([]model.Series{unsorted})
	assert.True(t, errors.Is(err, providers.ErrMalformedSchema))

	level := yearly("level", 1, map[int]float64{2015: 1})
	_, err = Align([]model.Series{level, level})
	assert.True(t, errors.Is(err, providers.ErrMalformedSchema))

	_, err = Align([]model.Series{observed("empty")})
	assert.True(t, errors.Is(err, providers.ErrSourceUnavailable))
}
