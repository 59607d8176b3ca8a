// Package usecase defines repository interfaces for database operations.
// These interfaces are defined by the use case layer and implemented by the infrastructure layer.
package usecase

import (
	"context"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

// =============================================================================
// Table Repository Interface
// =============================================================================

// TableRepository defines the DDL and catalog operations on results tables.
type TableRepository interface {
	// Create creates a table with the column layout of v and records v in the catalog.
	// Returns an error wrapping database.ErrTableExists if the table exists.
	Create(ctx context.Context, table string, v *schema.Variant) error

	// Drop drops a table and removes it from the catalog.
	// Returns an error wrapping database.ErrTableNotFound if the table does not exist.
	Drop(ctx context.Context, table string) error

	// List returns the names of all results tables, ascending.
	// The catalog table is not included.
	List(ctx context.Context) ([]string, error)

	// Variant returns the variant recorded for table.
	// ok is false when the table is not in the catalog.
	Variant(ctx context.Context, table string) (v *schema.Variant, ok bool, err error)

	// NewInserter prepares an INSERT of one row of v into table.
	NewInserter(ctx context.Context, table string, v *schema.Variant) (RowInserter, error)
}

// RowInserter inserts rows through one prepared statement.
type RowInserter interface {
	// Insert inserts one row; values are in the variant's column order.
	Insert(ctx context.Context, values []any) error

	// Close releases the prepared statement.
	Close() error
}

// =============================================================================
// Results Repository Interface
// =============================================================================

// ResultsRepository defines the read-only queries over a results table.
// Every filter is a conjunction of equality predicates.
type ResultsRepository interface {
	// DistinctDMs returns the distinct DMs values of the matching rows, ascending.
	DistinctDMs(ctx context.Context, table string, filter scenario.Filter) ([]int64, error)

	// Summary returns min, max, avg and population stddev of GFLOPs.
	// ok is false when no row matches.
	Summary(ctx context.Context, table string, filter scenario.Filter) (s analysis.Summary, ok bool, err error)

	// MaxGFLOPs returns the largest GFLOPs value. ok is false when no row matches.
	MaxGFLOPs(ctx context.Context, table string, filter scenario.Filter) (max float64, ok bool, err error)

	// GFLOPs returns the GFLOPs value of every matching row.
	GFLOPs(ctx context.Context, table string, filter scenario.Filter) ([]float64, error)

	// DistinctValues returns the distinct values of an integer column, ascending.
	DistinctValues(ctx context.Context, table, column string, filter scenario.Filter) ([]int64, error)

	// Extremal returns the projected columns of the first matching row whose
	// GFLOPs equals agg(GFLOPs) over the same filter. Ties are broken by
	// ascending order of the order columns and then id. ok is false when no row matches.
	Extremal(ctx context.Context, table string, columns []schema.Column, agg analysis.Aggregate,
		filter scenario.Filter, order []string) (values []any, ok bool, err error)

	// MinTime returns the smallest time value, or nil when no row matches.
	MinTime(ctx context.Context, table string, filter scenario.Filter) (*float64, error)
}
