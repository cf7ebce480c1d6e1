package providers

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"ghanaoil/internal/model"
)

// GetString reads the first present key from row as a trimmed string.
func GetString(row map[string]any, keys ...string) (string, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

// GetFloat reads the first present key from row as a number. The second
// result reports whether the key exists; the third whether it held a number.
func GetFloat(row map[string]any, keys ...string) (float64, bool, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return 0, false, false
	}
	parsed, ok := ToFloat(value)
	return parsed, true, ok
}

func ToFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func getValue(row map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := row[key]; ok {
			return value, ok
		}
	}
	for rowKey, value := range row {
		for _, key := range keys {
			if strings.EqualFold(rowKey, key) {
				return value, true
			}
		}
	}
	return nil, false
}

// SortPoints orders points by time and keeps the last value seen for a
// repeated timestamp.
func SortPoints(points []model.Point) []model.Point {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	out := points[:0]
	for _, point := range points {
		if n := len(out); n > 0 && out[n-1].Time.Equal(point.Time) {
			out[n-1] = point
			continue
		}
		out = append(out, point)
	}
	return out
}

// Coarsest returns the widest granularity among types, defaulting to day.
func Coarsest(types []model.PeriodType) model.PeriodType {
	rank := map[model.PeriodType]int{
		model.PeriodDay:     1,
		model.PeriodMonth:   2,
		model.PeriodQuarter: 3,
		model.PeriodYear:    4,
	}
	best := model.PeriodDay
	for _, periodType := range types {
		if rank[periodType] > rank[best] {
			best = periodType
		}
	}
	return best
}
