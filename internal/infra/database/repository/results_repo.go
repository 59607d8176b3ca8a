package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
)

// SQLResultsRepository implements usecase.ResultsRepository on any supported backend.
type SQLResultsRepository struct {
	db *database.DB
}

// NewSQLResultsRepository creates a new results repository.
func NewSQLResultsRepository(db *database.DB) *SQLResultsRepository {
	return &SQLResultsRepository{db: db}
}

// selectFrom starts "SELECT <exprs> FROM <table> [WHERE <filter>]".
func (r *SQLResultsRepository) selectFrom(table string, filter scenario.Filter, exprs ...string) (*database.Query, error) {
	d := r.db.Dialect
	name, err := d.Quote(table)
	if err != nil {
		return nil, err
	}
	q := d.NewQuery().Write("SELECT ", strings.Join(exprs, ", "), " FROM ", name)
	if err := q.Where(filter); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *SQLResultsRepository) queryErr(op, table string, err error) error {
	return fmt.Errorf("%s %s: %w", op, table, r.db.Dialect.Classify(err))
}

// DistinctDMs returns the ascending distinct DMs of the matching rows.
func (r *SQLResultsRepository) DistinctDMs(ctx context.Context, table string, filter scenario.Filter) ([]int64, error) {
	return r.DistinctValues(ctx, table, schema.ColumnDMs, filter)
}

// DistinctValues returns the ascending distinct values of an integer column.
func (r *SQLResultsRepository) DistinctValues(ctx context.Context, table, column string, filter scenario.Filter) ([]int64, error) {
	col, err := r.db.Dialect.Quote(column)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	q, err := r.selectFrom(table, filter, "DISTINCT "+col)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	q.Write(" ORDER BY ", col)

	rows, err := r.db.QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, r.queryErr("distinct "+column+" of", table, err)
	}
	defer rows.Close()

	var values []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryErr("distinct "+column+" of", table, err)
	}
	return values, nil
}

// Summary aggregates GFLOPs in the database when it has a population stddev
// and in process otherwise.
func (r *SQLResultsRepository) Summary(ctx context.Context, table string, filter scenario.Filter) (analysis.Summary, bool, error) {
	d := r.db.Dialect
	if !d.HasStdDevPop() {
		values, err := r.GFLOPs(ctx, table, filter)
		if err != nil || len(values) == 0 {
			return analysis.Summary{}, false, err
		}
		s, err := analysis.Summarize(values)
		if err != nil {
			return analysis.Summary{}, false, err
		}
		return s, true, nil
	}

	g := d.MustQuote(schema.ColumnGFLOPs)
	q, err := r.selectFrom(table, filter,
		"MIN("+g+")", "MAX("+g+")", "AVG("+g+")", d.StdDevPop()+"("+g+")")
	if err != nil {
		return analysis.Summary{}, false, fmt.Errorf("summary: %w", err)
	}

	var min, max, avg, stddev sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q.SQL(), q.Args()...).Scan(&min, &max, &avg, &stddev); err != nil {
		return analysis.Summary{}, false, r.queryErr("summarize", table, err)
	}
	if !min.Valid {
		return analysis.Summary{}, false, nil
	}
	return analysis.Summary{Min: min.Float64, Max: max.Float64, Avg: avg.Float64, StdDev: stddev.Float64}, true, nil
}

// MaxGFLOPs returns MAX(GFLOPs) over the matching rows.
func (r *SQLResultsRepository) MaxGFLOPs(ctx context.Context, table string, filter scenario.Filter) (float64, bool, error) {
	q, err := r.selectFrom(table, filter, "MAX("+r.db.Dialect.MustQuote(schema.ColumnGFLOPs)+")")
	if err != nil {
		return 0, false, fmt.Errorf("max GFLOPs: %w", err)
	}

	var max sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q.SQL(), q.Args()...).Scan(&max); err != nil {
		return 0, false, r.queryErr("max GFLOPs of", table, err)
	}
	return max.Float64, max.Valid, nil
}

// GFLOPs returns the GFLOPs values of the matching rows in id order.
func (r *SQLResultsRepository) GFLOPs(ctx context.Context, table string, filter scenario.Filter) ([]float64, error) {
	d := r.db.Dialect
	q, err := r.selectFrom(table, filter, d.MustQuote(schema.ColumnGFLOPs))
	if err != nil {
		return nil, fmt.Errorf("select GFLOPs: %w", err)
	}
	q.Write(" ORDER BY ", d.MustQuote(schema.ColumnID))

	rows, err := r.db.QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, r.queryErr("select GFLOPs of", table, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan GFLOPs: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryErr("select GFLOPs of", table, err)
	}
	return values, nil
}

// Extremal selects the row with GFLOPs = agg(GFLOPs), breaking ties by the order columns and id.
//
//	SELECT cols FROM t WHERE f AND GFLOPs = (SELECT agg(GFLOPs) FROM t WHERE f) ORDER BY order..., id
func (r *SQLResultsRepository) Extremal(ctx context.Context, table string, columns []schema.Column,
	agg analysis.Aggregate, filter scenario.Filter, order []string) ([]any, bool, error) {
	d := r.db.Dialect
	if agg != analysis.AggregateMin && agg != analysis.AggregateMax {
		return nil, false, fmt.Errorf("unsupported aggregate %q", agg)
	}

	projection := make([]string, len(columns))
	for i, c := range columns {
		col, err := d.Quote(c.Name)
		if err != nil {
			return nil, false, fmt.Errorf("extremal row: %w", err)
		}
		projection[i] = col
	}

	name, err := d.Quote(table)
	if err != nil {
		return nil, false, fmt.Errorf("extremal row: %w", err)
	}
	g := d.MustQuote(schema.ColumnGFLOPs)

	q, err := r.selectFrom(table, filter, projection...)
	if err != nil {
		return nil, false, fmt.Errorf("extremal row: %w", err)
	}
	if len(filter) == 0 {
		q.Write(" WHERE ")
	} else {
		q.Write(" AND ")
	}
	q.Write(g, " = (SELECT ", string(agg), "(", g, ") FROM ", name)
	if err := q.Where(filter); err != nil {
		return nil, false, fmt.Errorf("extremal row: %w", err)
	}
	q.Write(")")

	orderBy := make([]string, 0, len(order)+1)
	for _, c := range append(append([]string(nil), order...), schema.ColumnID) {
		col, err := d.Quote(c)
		if err != nil {
			return nil, false, fmt.Errorf("extremal row: %w", err)
		}
		orderBy = append(orderBy, col)
	}
	q.Write(" ORDER BY ", strings.Join(orderBy, ", "))

	// Only the first row is read, the statement stays free of dialect specific LIMIT syntax.
	rows, err := r.db.QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, false, r.queryErr("select extremal row of", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, r.queryErr("select extremal row of", table, err)
		}
		return nil, false, nil
	}

	values, err := scanTyped(rows, columns)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// scanTyped scans the current row into int64 or float64 per column type.
func scanTyped(rows *sql.Rows, columns []schema.Column) ([]any, error) {
	ints := make([]int64, len(columns))
	floats := make([]float64, len(columns))
	dest := make([]any, len(columns))
	for i, c := range columns {
		if c.Type == schema.TypeFloat {
			dest[i] = &floats[i]
		} else {
			dest[i] = &ints[i]
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	values := make([]any, len(columns))
	for i, c := range columns {
		if c.Type == schema.TypeFloat {
			values[i] = floats[i]
		} else {
			values[i] = ints[i]
		}
	}
	return values, nil
}

// MinTime returns MIN(time) over the matching rows, nil when there are none.
func (r *SQLResultsRepository) MinTime(ctx context.Context, table string, filter scenario.Filter) (*float64, error) {
	q, err := r.selectFrom(table, filter, "MIN("+r.db.Dialect.MustQuote(schema.ColumnTime)+")")
	if err != nil {
		return nil, fmt.Errorf("min time: %w", err)
	}

	var min sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q.SQL(), q.Args()...).Scan(&min); err != nil {
		return nil, r.queryErr("min time of", table, err)
	}
	if !min.Valid {
		return nil, nil
	}
	return &min.Float64, nil
}
