// Package scenario builds the typed predicates that select benchmark rows:
// scenario dimensions, optimization flags and the no-reuse restriction.
package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

var (
	// ErrInvalidScenario is returned when scenario values do not match the variant.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInvalidFlag is returned for unknown or conflicting flag tokens.
	ErrInvalidFlag = errors.New("invalid optimization flag")

	// ErrUnsupportedFlag is returned when a flag selects a column the variant does not have.
	ErrUnsupportedFlag = errors.New("optimization flag not supported by schema variant")
)

// Operator is a comparison operator of a predicate.
type Operator string

// OpEqual is the only operator scenario filters need.
const OpEqual Operator = "="

// Predicate is one (column, operator, value) triple.
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

// Eq returns the predicate column = value.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEqual, Value: value}
}

// Filter is a conjunction of predicates.
type Filter []Predicate

// And returns a new filter with preds appended. The receiver is not modified.
func (f Filter) And(preds ...Predicate) Filter {
	out := make(Filter, 0, len(f)+len(preds))
	out = append(out, f...)
	return append(out, preds...)
}

// Columns returns the columns referenced by the filter, in order.
func (f Filter) Columns() []string {
	cols := make([]string, len(f))
	for i, p := range f {
		cols[i] = p.Column
	}
	return cols
}

// Build parses one value per scenario column of v, in the variant's order.
func Build(v *schema.Variant, values []string) (Filter, error) {
	columns := v.ScenarioColumns()
	if len(values) != len(columns) {
		return nil, fmt.Errorf("%w: variant %s expects %d values (%s), got %d",
			ErrInvalidScenario, v.Name, len(columns), strings.Join(columns, " "), len(values))
	}

	filter := make(Filter, 0, len(columns))
	for i, column := range columns {
		n, err := strconv.ParseInt(values[i], 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidScenario, column, values[i])
		}
		filter = append(filter, Eq(column, n))
	}
	return filter, nil
}

// NoReuse returns the predicates pinning the variant's reuse parameters to 1.
func NoReuse(v *schema.Variant) Filter {
	filter := make(Filter, 0, len(v.NoReuseColumns))
	for _, column := range v.NoReuseColumns {
		filter = append(filter, Eq(column, int64(1)))
	}
	return filter
}
