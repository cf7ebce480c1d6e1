package model

import "time"

type PeriodType string

const (
	PeriodDay     PeriodType = "D"
	PeriodMonth   PeriodType = "M"
	PeriodQuarter PeriodType = "Q"
	PeriodYear    PeriodType = "Y"
)

// Resample selects how a series is brought onto the quarterly axis.
type Resample string

const (
	// ResampleMean averages the points that fall inside each quarter.
	ResampleMean Resample = "mean"
	// ResampleFFill carries the latest value known at each quarter's start.
	ResampleFFill Resample = "ffill"
)

type Point struct {
	Time  time.Time
	Value float64
}

type Series struct {
	Source      string
	Field       string
	Granularity PeriodType
	Resample    Resample
	// Scale multiplies every aligned value; 1000 for series reported in thousands.
	Scale  float64
	Points []Point
}

type Row struct {
	Period Quarter
	Values []float64
}

// Frame is the merged quarterly table. Values in each row follow Fields.
type Frame struct {
	Fields []string
	Rows   []Row
}

type Run struct {
	ID        string
	CreatedAt time.Time
	Series    []Series
	Frame     Frame
}
