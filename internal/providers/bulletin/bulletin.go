// Package bulletin provides historical series sources for the OPEC annual
// statistical bulletin. No document parser exists yet; StaticTable serves a
// fixed transcription and CSVTable reads a table extracted out of band.
package bulletin

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
	"ghanaoil/internal/providers"
)

const (
	sourceName   = "bulletin"
	defaultField = "opec_production"
	// DefaultScale converts thousand barrels/day into barrels/day.
	DefaultScale = 1000
)

// DefaultTable is Ghana's crude production in thousand barrels/day as
// transcribed from the bulletin.
var DefaultTable = map[int]float64{
	2015: 35.4,
	2016: 38.2,
	2017: 41.1,
	2018: 44.5,
	2019: 47.8,
	2020: 49.2,
}

type Config struct {
	Field    string
	Scale    float64
	Resample model.Resample
}

func (c Config) withDefaults() Config {
	if c.Field == "" {
		c.Field = defaultField
	}
	if c.Scale == 0 {
		c.Scale = DefaultScale
	}
	if c.Resample == "" {
		c.Resample = model.ResampleFFill
	}
	return c
}

func (c Config) series(points []model.Point) model.Series {
	return model.Series{
		Source:      sourceName,
		Field:       c.Field,
		Granularity: model.PeriodYear,
		Resample:    c.Resample,
		Scale:       c.Scale,
		Points:      providers.SortPoints(points),
	}
}

// StaticTable serves a yearly table held in memory.
type StaticTable struct {
	config Config
	table  map[int]float64
}

func NewStaticTable(cfg Config, table map[int]float64) *StaticTable {
	if table == nil {
		table = DefaultTable
	}
	return &StaticTable{config: cfg.withDefaults(), table: table}
}

func (s *StaticTable) Name() string {
	return sourceName
}

func (s *StaticTable) FetchSeries(ctx context.Context) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return model.Series{}, providers.Unavailable(sourceName, err)
	}
	if len(s.table) == 0 {
		return model.Series{}, providers.Unavailable(sourceName, errors.New("table is empty"))
	}
	points := make([]model.Point, 0, len(s.table))
	for year, value := range s.table {
		points = append(points, model.Point{Time: yearStart(year), Value: value})
	}
	return s.config.series(points), nil
}

// CSVTable reads a yearly table from a delimited file with a header row. The
// year column is "year" and the value column is ValueColumn, or the first
// other column when ValueColumn is empty.
type CSVTable struct {
	config      Config
	path        string
	valueColumn string
}

func NewCSVTable(cfg Config, path, valueColumn string) *CSVTable {
	return &CSVTable{config: cfg.withDefaults(), path: path, valueColumn: valueColumn}
}

func (s *CSVTable) Name() string {
	return sourceName
}

func (s *CSVTable) FetchSeries(ctx context.Context) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return model.Series{}, providers.Unavailable(sourceName, err)
	}
	file, err := os.Open(s.path)
	if err != nil {
		return model.Series{}, providers.Unavailable(sourceName, err)
	}
	defer file.Close()

	points, err := readTable(file, s.valueColumn)
	if err != nil {
		return model.Series{}, err
	}
	if len(points) == 0 {
		return model.Series{}, providers.Unavailable(sourceName, errors.Newf("%s has no rows", s.path))
	}
	return s.config.series(points), nil
}

func readTable(r io.Reader, valueColumn string) ([]model.Point, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, providers.Malformed(sourceName, "read header: %v", err)
	}

	columns := normalizeHeader(header)
	yearIndex, ok := columns["year"]
	if !ok {
		return nil, providers.Malformed(sourceName, "header has no year column")
	}
	valueIndex := -1
	if valueColumn != "" {
		index, ok := columns[strings.ToLower(strings.TrimSpace(valueColumn))]
		if !ok {
			return nil, providers.Malformed(sourceName, "header has no %q column", valueColumn)
		}
		valueIndex = index
	} else {
		for i := range header {
			if i != yearIndex {
				valueIndex = i
				break
			}
		}
	}
	if valueIndex < 0 {
		return nil, providers.Malformed(sourceName, "header has no value column")
	}

	points := make([]model.Point, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, providers.Malformed(sourceName, "line %d: %v", line, err)
		}
		yearCell := getCell(record, yearIndex)
		valueCell := getCell(record, valueIndex)
		if yearCell == "" && valueCell == "" {
			continue
		}
		year, err := strconv.Atoi(yearCell)
		if err != nil {
			return nil, providers.Malformed(sourceName, "line %d: invalid year %q", line, yearCell)
		}
		if valueCell == "" {
			continue
		}
		value, err := strconv.ParseFloat(valueCell, 64)
		if err != nil {
			return nil, providers.Malformed(sourceName, "line %d: invalid value %q", line, valueCell)
		}
		points = append(points, model.Point{Time: yearStart(year), Value: value})
	}
	return points, nil
}

func normalizeHeader(header []string) map[string]int {
	result := make(map[string]int, len(header))
	for i, value := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "\ufeff")))
		if key == "" {
			continue
		}
		result[key] = i
	}
	return result
}

func getCell(record []string, index int) string {
	if index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

var (
	_ providers.Source = (*StaticTable)(nil)
	_ providers.Source = (*CSVTable)(nil)
)
