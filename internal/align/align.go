// Package align merges independently sampled series onto one dense quarterly
// axis.
//
// Each series is resampled by its own rule: ResampleMean averages the points
// inside a quarter, ResampleFFill carries the latest value known at the
// quarter's start. The resampled series are outer-joined, interior gaps are
// filled by linear interpolation along the quarter axis, and any quarter that
// would need extrapolation for some field is dropped. Values are finally
// multiplied by the series scale.
package align

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

var ErrEmptyResult = errors.New("alignment produced no rows")

// span is a resampled series: values indexed by quarter ordinal, NaN for gaps.
type span struct {
	first  int
	values []float64
}

func (s span) last() int {
	return s.first + len(s.values) - 1
}

// Align produces the quarterly frame for series. Field order follows the
// order of series.
func Align(series []model.Series) (model.Frame, error) {
	if len(series) == 0 {
		return model.Frame{}, errors.Wrap(ErrEmptyResult, "no series given")
	}

	fields := make([]string, 0, len(series))
	seen := make(map[string]struct{}, len(series))
	spans := make([]span, 0, len(series))
	for _, s := range series {
		if err := validate(s); err != nil {
			return model.Frame{}, err
		}
		if _, dup := seen[s.Field]; dup {
			return model.Frame{}, providers.Malformed(s.Source, "field %q is produced by more than one series", s.Field)
		}
		seen[s.Field] = struct{}{}
		fields = append(fields, s.Field)

		resampled, err := resample(s)
		if err != nil {
			return model.Frame{}, err
		}
		spans = append(spans, resampled)
	}

	start, end := spans[0].first, spans[0].last()
	for _, s := range spans[1:] {
		start = min(start, s.first)
		end = max(end, s.last())
	}

	// columns[f][i] is field f at quarter start+i.
	columns := make([][]float64, len(spans))
	for f, s := range spans {
		column := make([]float64, end-start+1)
		for i := range column {
			column[i] = math.NaN()
		}
		copy(column[s.first-start:], s.values)
		interpolate(column)
		columns[f] = column
	}

	rows := make([]model.Row, 0, end-start+1)
	for i := 0; i <= end-start; i++ {
		values := make([]float64, len(columns))
		complete := true
		for f, column := range columns {
			if math.IsNaN(column[i]) {
				complete = false
				break
			}
			values[f] = scale(column[i], series[f].Scale)
		}
		if !complete {
			continue
		}
		rows = append(rows, model.Row{Period: model.QuarterFromIndex(start + i), Values: values})
	}

	if len(rows) == 0 {
		return model.Frame{}, errors.Wrapf(ErrEmptyResult, "fields %v share no quarter", fields)
	}
	return model.Frame{Fields: fields, Rows: rows}, nil
}

func validate(s model.Series) error {
	if s.Field == "" {
		return providers.Malformed(s.Source, "series has no field name")
	}
	if len(s.Points) == 0 {
		return providers.Unavailable(s.Source, errors.Newf("series %q has no points", s.Field))
	}
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i-1].Time.Before(s.Points[i].Time) {
			return providers.Malformed(s.Source, "series %q timestamps are not strictly ascending at %s",
				s.Field, s.Points[i].Time.Format("2006-01-02"))
		}
	}
	for _, point := range s.Points {
		if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
			return providers.Malformed(s.Source, "series %q has a non-finite value at %s",
				s.Field, point.Time.Format("2006-01-02"))
		}
	}
	return nil
}

func resample(s model.Series) (span, error) {
	switch s.Resample {
	case model.ResampleMean:
		return resampleMean(s.Points), nil
	case model.ResampleFFill, "":
		return resampleFFill(s.Points, s.Granularity), nil
	default:
		return span{}, providers.Malformed(s.Source, "unknown resample rule %q", s.Resample)
	}
}

func resampleMean(points []model.Point) span {
	first := model.QuarterOf(points[0].Time).Index()
	last := model.QuarterOf(points[len(points)-1].Time).Index()
	sums := make([]float64, last-first+1)
	counts := make([]int, last-first+1)
	for _, point := range points {
		i := model.QuarterOf(point.Time).Index() - first
		sums[i] += point.Value
		counts[i]++
	}
	values := make([]float64, len(sums))
	for i := range values {
		if counts[i] == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = sums[i] / float64(counts[i])
	}
	return span{first: first, values: values}
}

// resampleFFill spans the quarters from the first point to the last one. A
// yearly series extends through Q4 of its final year.
func resampleFFill(points []model.Point, granularity model.PeriodType) span {
	firstQuarter := model.QuarterOf(points[0].Time)
	lastQuarter := model.QuarterOf(points[len(points)-1].Time)
	if granularity == model.PeriodYear {
		lastQuarter = model.Quarter{Year: lastQuarter.Year, Q: 4}
	}

	first := firstQuarter.Index()
	values := make([]float64, lastQuarter.Index()-first+1)
	next := 0
	current := math.NaN()
	for i := range values {
		start := model.QuarterFromIndex(first + i).Start()
		for next < len(points) && !points[next].Time.After(start) {
			current = points[next].Value
			next++
		}
		values[i] = current
	}
	return span{first: first, values: values}
}

// interpolate fills NaN runs that have a known value on both sides. Leading
// and trailing NaN runs stay NaN.
func interpolate(column []float64) {
	prev := -1
	for i, value := range column {
		if math.IsNaN(value) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (value - column[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				column[j] = column[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
}

func scale(value, factor float64) float64 {
	if factor == 0 || factor == 1 {
		return value
	}
	return decimal.NewFromFloat(value).Mul(decimal.NewFromFloat(factor)).InexactFloat64()
}
