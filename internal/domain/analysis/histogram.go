package analysis

import (
	"errors"
	"fmt"
	"math"
)

// MaxBuckets bounds the number of buckets of one histogram.
const MaxBuckets = 1 << 20

// ErrHistogramTooLarge is returned when a GFLOPs value needs more than
// MaxBuckets buckets.
var ErrHistogramTooLarge = errors.New("histogram too large")

// Histogram counts the rows of one DM per integer-truncated GFLOPs value.
type Histogram struct {
	DM      int64   `json:"dm"`
	Buckets []int64 `json:"buckets"`
}

// NewHistogram returns a zeroed histogram of floor(max)+1 buckets.
func NewHistogram(dm int64, max float64) (*Histogram, error) {
	n, err := bucket(max)
	if err != nil {
		return nil, err
	}
	return &Histogram{DM: dm, Buckets: make([]int64, n+1)}, nil
}

// Add counts one GFLOPs value. The histogram grows when the value is above
// the maximum it was created with, which happens if rows are loaded between
// the max query and the scan.
func (h *Histogram) Add(gflops float64) error {
	i, err := bucket(gflops)
	if err != nil {
		return err
	}
	if i >= len(h.Buckets) {
		grown := make([]int64, i+1)
		copy(grown, h.Buckets)
		h.Buckets = grown
	}
	h.Buckets[i]++
	return nil
}

// Total returns the number of values counted.
func (h *Histogram) Total() int64 {
	var total int64
	for _, n := range h.Buckets {
		total += n
	}
	return total
}

func bucket(v float64) (int, error) {
	if v <= 0 || math.IsNaN(v) {
		return 0, nil
	}
	if v >= MaxBuckets {
		return 0, fmt.Errorf("%w: GFLOPs %v needs more than %d buckets", ErrHistogramTooLarge, v, MaxBuckets)
	}
	return int(math.Floor(v)), nil
}

// SpacePoint is the best GFLOPs reached with one value of a parameter.
type SpacePoint struct {
	Value int64   `json:"value"`
	Best  float64 `json:"best"`
}

// ParameterSpace is the single-parameter optimization space of one DM,
// ordered by parameter value ascending.
type ParameterSpace struct {
	DM     int64        `json:"dm"`
	Points []SpacePoint `json:"points"`
}
