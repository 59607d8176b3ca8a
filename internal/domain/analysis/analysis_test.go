package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAggregate(t *testing.T) {
	tests := []struct {
		op   string
		want Aggregate
		ok   bool
	}{
		{"min", AggregateMin, true},
		{"MAX", AggregateMax, true},
		{"Max", AggregateMax, true},
		{"avg", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, ok := ParseAggregate(tt.op)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRatio(t *testing.T) {
	assert.Equal(t, Ratio{Value: 4, Defined: true}, NewRatio(8, 2))
	assert.False(t, NewRatio(1, 0).Defined)
	assert.False(t, NewRatio(math.Inf(1), 1).Defined)

	two := 2.0
	assert.False(t, NewNullableRatio(nil, &two).Defined)
	assert.False(t, NewNullableRatio(&two, nil).Defined)
	assert.True(t, NewNullableRatio(&two, &two).Defined)
}

func TestRatio_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Ratio{{Value: 1.5, Defined: true}, {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(out))
}

func TestNewStatistic(t *testing.T) {
	s, err := Summarize([]float64{50, 60, 40})
	require.NoError(t, err)

	stat := NewStatistic(10, s.Min, s.Max, s.Avg, s.StdDev)
	assert.Equal(t, int64(10), stat.DM)
	assert.Equal(t, 40.0, stat.Min)
	assert.Equal(t, 60.0, stat.Max)
	assert.Equal(t, 50.0, stat.Avg)
	assert.InDelta(t, 8.16497, stat.StdDev, 1e-5)
	require.True(t, stat.SNR.Defined)
	assert.InDelta(t, 1.22474, stat.SNR.Value, 1e-5)

	flat := NewStatistic(10, 7, 7, 7, 0)
	assert.False(t, flat.SNR.Defined)
}

func TestSummarize_Empty(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)
}

func TestHistogram(t *testing.T) {
	h, err := NewHistogram(10, 3.7)
	require.NoError(t, err)
	require.Len(t, h.Buckets, 4)

	for _, v := range []float64{0.2, 3.7, 3.1, 1.9} {
		require.NoError(t, h.Add(v))
	}
	assert.Equal(t, []int64{1, 1, 0, 2}, h.Buckets)

	require.NoError(t, h.Add(5.5))
	assert.Len(t, h.Buckets, 6)
	assert.Equal(t, int64(5), h.Total())
}

func TestHistogram_TooLarge(t *testing.T) {
	_, err := NewHistogram(10, 1e19)
	assert.ErrorIs(t, err, ErrHistogramTooLarge)

	_, err = NewHistogram(10, MaxBuckets)
	assert.ErrorIs(t, err, ErrHistogramTooLarge)

	h, err := NewHistogram(10, MaxBuckets-1)
	require.NoError(t, err)
	assert.Len(t, h.Buckets, MaxBuckets)

	assert.ErrorIs(t, h.Add(math.Inf(1)), ErrHistogramTooLarge)
	assert.Equal(t, int64(0), h.Total())
}

func TestHistogram_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("buckets sum to the count and length is floor(max)+1", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return true
			}
			max := values[0]
			for _, v := range values {
				max = math.Max(max, v)
			}
			h, err := NewHistogram(1, max)
			if err != nil {
				return false
			}
			for _, v := range values {
				if err := h.Add(v); err != nil {
					return false
				}
			}
			return h.Total() == int64(len(values)) && len(h.Buckets) == int(math.Floor(max))+1
		},
		gen.SliceOf(gen.Float64Range(0, 500)),
	))

	properties.TestingRun(t)
}
