package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

var (
	// ErrUnknownParameter is returned when a parameter is not a strategy or tiling column.
	ErrUnknownParameter = errors.New("unknown tuning parameter")

	// ErrIncompatibleReference is returned when a reference table has other scenario columns.
	ErrIncompatibleReference = errors.New("reference table has a different scenario layout")
)

// Selection identifies the rows a query works on.
type Selection struct {
	Table    string
	Variant  *schema.Variant
	Scenario scenario.Filter
	Flags    scenario.Flags
}

// filter returns the scenario predicates followed by the flag predicates.
func (s Selection) filter() (scenario.Filter, error) {
	flags, err := s.Flags.Predicates(s.Variant)
	if err != nil {
		return nil, err
	}
	return s.Scenario.And(flags...), nil
}

// QueryUseCase runs the reporting queries. Every per-DM query iterates over
// the distinct DMs of the selected rows in ascending order, one DM at a time.
type QueryUseCase struct {
	results ResultsRepository
}

// NewQueryUseCase creates a new query use case.
func NewQueryUseCase(results ResultsRepository) *QueryUseCase {
	return &QueryUseCase{results: results}
}

func dmFilter(base scenario.Filter, dm int64) scenario.Filter {
	return base.And(scenario.Eq(schema.ColumnDMs, dm))
}

// Statistics returns [DM, min, max, avg, stddev, snr] of GFLOPs per DM.
func (uc *QueryUseCase) Statistics(ctx context.Context, sel Selection) ([]analysis.Statistic, error) {
	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}
	dms, err := uc.results.DistinctDMs(ctx, sel.Table, filter)
	if err != nil {
		return nil, err
	}

	stats := make([]analysis.Statistic, 0, len(dms))
	for _, dm := range dms {
		s, ok, err := uc.results.Summary(ctx, sel.Table, dmFilter(filter, dm))
		if err != nil {
			return nil, fmt.Errorf("statistics for DM %d: %w", dm, err)
		}
		if !ok {
			// Rows removed between the DM scan and the aggregate.
			continue
		}
		stats = append(stats, analysis.NewStatistic(dm, s.Min, s.Max, s.Avg, s.StdDev))
	}
	return stats, nil
}

// SNR returns (max - avg) / stddev of GFLOPs per DM over the whole table.
func (uc *QueryUseCase) SNR(ctx context.Context, table string, v *schema.Variant) ([]analysis.SNRPoint, error) {
	stats, err := uc.Statistics(ctx, Selection{Table: table, Variant: v})
	if err != nil {
		return nil, err
	}
	points := make([]analysis.SNRPoint, len(stats))
	for i, s := range stats {
		points[i] = analysis.SNRPoint{DM: s.DM, SNR: s.SNR}
	}
	return points, nil
}

// Histogram counts rows per integer-truncated GFLOPs value, per DM.
func (uc *QueryUseCase) Histogram(ctx context.Context, sel Selection) ([]*analysis.Histogram, error) {
	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}
	dms, err := uc.results.DistinctDMs(ctx, sel.Table, filter)
	if err != nil {
		return nil, err
	}

	histograms := make([]*analysis.Histogram, 0, len(dms))
	for _, dm := range dms {
		f := dmFilter(filter, dm)
		max, ok, err := uc.results.MaxGFLOPs(ctx, sel.Table, f)
		if err != nil {
			return nil, fmt.Errorf("histogram for DM %d: %w", dm, err)
		}
		if !ok {
			continue
		}
		values, err := uc.results.GFLOPs(ctx, sel.Table, f)
		if err != nil {
			return nil, fmt.Errorf("histogram for DM %d: %w", dm, err)
		}

		h, err := analysis.NewHistogram(dm, max)
		if err != nil {
			return nil, fmt.Errorf("histogram for DM %d: %w", dm, err)
		}
		for _, v := range values {
			if err := h.Add(v); err != nil {
				return nil, fmt.Errorf("histogram for DM %d: %w", dm, err)
			}
		}
		histograms = append(histograms, h)
	}
	return histograms, nil
}

// OptimizationSpace returns the best configuration per DM, projecting
// [DM, strategy..., tiling..., GFLOPs].
func (uc *QueryUseCase) OptimizationSpace(ctx context.Context, sel Selection) ([]analysis.Row, error) {
	columns := columnsOf(sel.Variant, append(sel.Variant.ConfigurationColumns(), schema.ColumnGFLOPs))
	return uc.extremalRows(ctx, sel, analysis.AggregateMax, columns, nil)
}

// SingleParameterOptimizationSpace returns, per DM, the best GFLOPs reached
// with each value of parameter, values ascending.
func (uc *QueryUseCase) SingleParameterOptimizationSpace(ctx context.Context, sel Selection, parameter string) ([]analysis.ParameterSpace, error) {
	if !sel.Variant.IsParameter(parameter) {
		return nil, fmt.Errorf("%w: %q is not a strategy or tiling column of variant %s",
			ErrUnknownParameter, parameter, sel.Variant.Name)
	}

	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}
	dms, err := uc.results.DistinctDMs(ctx, sel.Table, filter)
	if err != nil {
		return nil, err
	}

	spaces := make([]analysis.ParameterSpace, 0, len(dms))
	for _, dm := range dms {
		f := dmFilter(filter, dm)
		values, err := uc.results.DistinctValues(ctx, sel.Table, parameter, f)
		if err != nil {
			return nil, fmt.Errorf("values of %s for DM %d: %w", parameter, dm, err)
		}

		space := analysis.ParameterSpace{DM: dm, Points: make([]analysis.SpacePoint, 0, len(values))}
		for _, value := range values {
			best, ok, err := uc.results.MaxGFLOPs(ctx, sel.Table, f.And(scenario.Eq(parameter, value)))
			if err != nil {
				return nil, fmt.Errorf("best GFLOPs for DM %d, %s = %d: %w", dm, parameter, value, err)
			}
			if ok {
				space.Points = append(space.Points, analysis.SpacePoint{Value: value, Best: best})
			}
		}
		spaces = append(spaces, space)
	}
	return spaces, nil
}

// Tune returns, per DM, the configuration whose GFLOPs is the op (min or max)
// of the selected rows, projecting [DM, strategy..., tiling..., measurements...].
// Any other op yields an empty result.
func (uc *QueryUseCase) Tune(ctx context.Context, sel Selection, op string) ([]analysis.Row, error) {
	return uc.tune(ctx, sel, op, nil)
}

// TuneNoReuse is Tune restricted to configurations without DM reuse.
func (uc *QueryUseCase) TuneNoReuse(ctx context.Context, sel Selection, op string) ([]analysis.Row, error) {
	return uc.tune(ctx, sel, op, scenario.NoReuse(sel.Variant))
}

// Export is Tune over the whole table.
func (uc *QueryUseCase) Export(ctx context.Context, table string, v *schema.Variant, op string) ([]analysis.Row, error) {
	return uc.Tune(ctx, Selection{Table: table, Variant: v}, op)
}

func (uc *QueryUseCase) tune(ctx context.Context, sel Selection, op string, extra scenario.Filter) ([]analysis.Row, error) {
	agg, ok := analysis.ParseAggregate(op)
	if !ok {
		slog.Debug("Query: Unsupported tune operator, empty result", "op", "tune", "operator", op)
		return []analysis.Row{}, nil
	}
	columns := columnsOf(sel.Variant, sel.Variant.TieBreakColumns())
	return uc.extremalRows(ctx, sel, agg, columns, extra)
}

// extremalRows selects one row per DM with GFLOPs = agg(GFLOPs). extra is
// applied to both the DM range and the aggregate.
func (uc *QueryUseCase) extremalRows(ctx context.Context, sel Selection, agg analysis.Aggregate,
	columns []schema.Column, extra scenario.Filter) ([]analysis.Row, error) {
	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}
	filter = filter.And(extra...)

	dms, err := uc.results.DistinctDMs(ctx, sel.Table, filter)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(columns)+1)
	names = append(names, schema.ColumnDMs)
	for _, c := range columns {
		names = append(names, c.Name)
	}

	rows := make([]analysis.Row, 0, len(dms))
	for _, dm := range dms {
		values, ok, err := uc.results.Extremal(ctx, sel.Table, columns, agg, dmFilter(filter, dm), sel.Variant.TieBreakColumns())
		if err != nil {
			return nil, fmt.Errorf("%s GFLOPs row for DM %d: %w", agg, dm, err)
		}
		if !ok {
			continue
		}
		rows = append(rows, analysis.Row{
			DM:      dm,
			Columns: names,
			Values:  append([]any{dm}, values...),
		})
	}
	return rows, nil
}

// Speedup returns, per DM of the selection, MIN(time) of reference divided
// by MIN(time) of the table, both filtered by the same scenario.
func (uc *QueryUseCase) Speedup(ctx context.Context, sel Selection, reference string, refVariant *schema.Variant) ([]analysis.Speedup, error) {
	if !sel.Variant.SameScenario(refVariant) {
		return nil, fmt.Errorf("%w: %s is %s, %s is %s",
			ErrIncompatibleReference, sel.Table, sel.Variant.Name, reference, refVariant.Name)
	}
	return uc.speedup(ctx, sel, func(f scenario.Filter) (*float64, error) {
		return uc.results.MinTime(ctx, reference, f)
	})
}

// SpeedupNoReuse returns, per DM, the best no-reuse time divided by the best time.
func (uc *QueryUseCase) SpeedupNoReuse(ctx context.Context, sel Selection) ([]analysis.Speedup, error) {
	noReuse := scenario.NoReuse(sel.Variant)
	return uc.speedup(ctx, sel, func(f scenario.Filter) (*float64, error) {
		return uc.results.MinTime(ctx, sel.Table, f.And(noReuse...))
	})
}

func (uc *QueryUseCase) speedup(ctx context.Context, sel Selection,
	referenceTime func(scenario.Filter) (*float64, error)) ([]analysis.Speedup, error) {
	filter, err := sel.filter()
	if err != nil {
		return nil, err
	}
	dms, err := uc.results.DistinctDMs(ctx, sel.Table, filter)
	if err != nil {
		return nil, err
	}

	speedups := make([]analysis.Speedup, 0, len(dms))
	for _, dm := range dms {
		f := dmFilter(filter, dm)
		best, err := uc.results.MinTime(ctx, sel.Table, f)
		if err != nil {
			return nil, fmt.Errorf("min time for DM %d: %w", dm, err)
		}
		ref, err := referenceTime(f)
		if err != nil {
			return nil, fmt.Errorf("reference time for DM %d: %w", dm, err)
		}
		speedups = append(speedups, analysis.Speedup{DM: dm, Ratio: analysis.NewNullableRatio(ref, best)})
	}
	return speedups, nil
}

// columnsOf resolves column names of v. Unknown names are skipped.
func columnsOf(v *schema.Variant, names []string) []schema.Column {
	columns := make([]schema.Column, 0, len(names))
	for _, name := range names {
		if c, ok := v.Column(name); ok {
			columns = append(columns, c)
		}
	}
	return columns
}
