// Package analysis provides the result types of tuning-database queries and
// the small amount of arithmetic done outside the database.
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
)

// Aggregate is the SQL aggregate used to pick the extremal GFLOPs row.
type Aggregate string

const (
	// AggregateMin selects the slowest configuration.
	AggregateMin Aggregate = "MIN"
	// AggregateMax selects the fastest configuration.
	AggregateMax Aggregate = "MAX"
)

// ParseAggregate parses a tune operator case-insensitively.
// ok is false for anything other than min or max.
func ParseAggregate(op string) (agg Aggregate, ok bool) {
	switch Aggregate(strings.ToUpper(op)) {
	case AggregateMin:
		return AggregateMin, true
	case AggregateMax:
		return AggregateMax, true
	default:
		return "", false
	}
}

// Ratio is a quotient that may be undefined (zero or missing denominator).
type Ratio struct {
	Value   float64
	Defined bool
}

// NewRatio returns num / den, undefined when den is zero or the result is not finite.
func NewRatio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Ratio{}
	}
	return Ratio{Value: v, Defined: true}
}

// NewNullableRatio is NewRatio for values read from nullable aggregates.
func NewNullableRatio(num, den *float64) Ratio {
	if num == nil || den == nil {
		return Ratio{}
	}
	return NewRatio(*num, *den)
}

// MarshalJSON encodes an undefined ratio as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Statistic summarizes the GFLOPs of all rows of one DM.
type Statistic struct {
	DM     int64   `json:"dm"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	StdDev float64 `json:"stddev"`
	SNR    Ratio   `json:"snr"`
}

// NewStatistic derives the signal-to-noise ratio (max - avg) / stddev.
func NewStatistic(dm int64, min, max, avg, stddev float64) Statistic {
	return Statistic{
		DM:     dm,
		Min:    min,
		Max:    max,
		Avg:    avg,
		StdDev: stddev,
		SNR:    NewRatio(max-avg, stddev),
	}
}

// Summary holds the aggregates of a set of values.
type Summary struct {
	Min    float64
	Max    float64
	Avg    float64
	StdDev float64
}

// Summarize computes min, max, mean and population standard deviation.
// It is used where the backend has no population stddev aggregate.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("summarize: %w", stats.EmptyInputErr)
	}
	data := stats.Float64Data(values)

	min, err := data.Min()
	if err != nil {
		return Summary{}, fmt.Errorf("summarize min: %w", err)
	}
	max, err := data.Max()
	if err != nil {
		return Summary{}, fmt.Errorf("summarize max: %w", err)
	}
	avg, err := data.Mean()
	if err != nil {
		return Summary{}, fmt.Errorf("summarize mean: %w", err)
	}
	stddev, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize stddev: %w", err)
	}

	return Summary{Min: min, Max: max, Avg: avg, StdDev: stddev}, nil
}

// SNRPoint is the signal-to-noise ratio of one DM.
type SNRPoint struct {
	DM  int64 `json:"dm"`
	SNR Ratio `json:"snr"`
}

// Speedup is the ratio reference time / table time of one DM.
type Speedup struct {
	DM    int64 `json:"dm"`
	Ratio Ratio `json:"speedup"`
}

// Row is one projected table row of a tune or optimization space query.
type Row struct {
	DM      int64    `json:"dm"`
	Columns []string `json:"columns"`
	Values  []any    `json:"values"`
}

// Value returns the value of the named column.
func (r Row) Value(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}
