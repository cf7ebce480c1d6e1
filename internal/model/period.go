package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quarter is a three-month bucket identified by its start date.
type Quarter struct {
	Year int
	Q    int
}

func QuarterOf(t time.Time) Quarter {
	t = t.UTC()
	return Quarter{Year: t.Year(), Q: (int(t.Month())-1)/3 + 1}
}

func (q Quarter) Start() time.Time {
	return time.Date(q.Year, time.Month((q.Q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func (q Quarter) Next() Quarter {
	if q.Q == 4 {
		return Quarter{Year: q.Year + 1, Q: 1}
	}
	return Quarter{Year: q.Year, Q: q.Q + 1}
}

// Index is a monotonic ordinal, so Index differences count quarters.
func (q Quarter) Index() int {
	return q.Year*4 + q.Q - 1
}

func (q Quarter) Before(other Quarter) bool {
	return q.Index() < other.Index()
}

// String renders the quarter as the ISO date of its first day.
func (q Quarter) String() string {
	return q.Start().Format("2006-01-02")
}

func (q Quarter) Label() string {
	return fmt.Sprintf("%04d-Q%d", q.Year, q.Q)
}

// QuarterFromIndex is the inverse of Quarter.Index.
func QuarterFromIndex(index int) Quarter {
	return Quarter{Year: index / 4, Q: index%4 + 1}
}

// ParsePeriod turns the period strings the sources emit into a timestamp at
// the start of the period together with its granularity.
func ParsePeriod(raw string) (time.Time, PeriodType, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, "", false
	}

	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t.UTC(), PeriodDay, true
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC(), PeriodDay, true
	}
	if year, month, ok := parseYearMonth(trimmed); ok {
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), PeriodMonth, true
	}
	if year, quarter, ok := parseYearQuarter(trimmed); ok {
		return Quarter{Year: year, Q: quarter}.Start(), PeriodQuarter, true
	}
	if year, ok := parseYear(trimmed); ok {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), PeriodYear, true
	}
	return time.Time{}, "", false
}

// parseYearMonth accepts YYYY-MM and YYYYMM.
func parseYearMonth(value string) (int, int, bool) {
	yearPart, monthPart, found := strings.Cut(value, "-")
	if !found {
		if len(value) != 6 {
			return 0, 0, false
		}
		yearPart, monthPart = value[:4], value[4:]
	}
	year, ok := parseYear(yearPart)
	if !ok {
		return 0, 0, false
	}
	month, ok := boundedInt(monthPart, 1, 12)
	return year, month, ok
}

// parseYearQuarter accepts YYYY-Qn and YYYYQn in either case.
func parseYearQuarter(value string) (int, int, bool) {
	yearPart, quarterPart, found := strings.Cut(strings.ToUpper(value), "Q")
	if !found {
		return 0, 0, false
	}
	year, ok := parseYear(strings.TrimSuffix(yearPart, "-"))
	if !ok {
		return 0, 0, false
	}
	quarter, ok := boundedInt(quarterPart, 1, 4)
	return year, quarter, ok
}

func parseYear(value string) (int, bool) {
	if len(value) != 4 {
		return 0, false
	}
	return boundedInt(value, 0, 9999)
}

// boundedInt parses an unsigned decimal within [lo, hi].
func boundedInt(value string, lo, hi int) (int, bool) {
	if value == "" || strings.TrimLeft(value, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
