// Package schema describes the layouts of benchmark result tables.
// A table is created with exactly one Variant and keeps it for its whole life.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownVariant is returned when a variant name is not one of the known layouts.
var ErrUnknownVariant = errors.New("unknown schema variant")

// Well-known column names shared by every variant.
const (
	ColumnID     = "id"
	ColumnDMs    = "DMs"
	ColumnGFLOPs = "GFLOPs"
	ColumnTime   = "time"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	// TypeInt is a non-negative integer.
	TypeInt ColumnType = iota
	// TypeFloat is a non-negative, finite floating point number.
	TypeFloat
	// TypeBool is an integer restricted to 0 or 1.
	TypeBool
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Role is the part a column plays in queries.
type Role string

const (
	// RoleDM marks the dispersion measure axis every report iterates over.
	RoleDM Role = "dm"
	// RoleScenario marks experiment dimensions filtered by equality.
	RoleScenario Role = "scenario"
	// RoleStrategy marks kernel strategy switches (memory, split, unroll).
	RoleStrategy Role = "strategy"
	// RoleTiling marks thread/block/item tiling parameters.
	RoleTiling Role = "tiling"
	// RoleMeasurement marks measured values.
	RoleMeasurement Role = "measurement"
)

// Column is one input column of a variant.
type Column struct {
	Name string
	Type ColumnType
	Role Role
}

// Variant is a fixed table layout.
type Variant struct {
	// Name identifies the variant in the catalog and on the command line.
	Name string

	// Columns lists the input columns in file order. The auto-increment id is not included.
	Columns []Column

	// MemoryColumn is the boolean column selected by the local/cache flag, if any.
	MemoryColumn string

	// SplitColumn is the boolean column selected by the split/cont flag, if any.
	SplitColumn string

	// NoReuseColumns are the tiling parameters pinned to 1 by no-reuse queries.
	NoReuseColumns []string
}

// Variant names.
const (
	VariantOpenCL  = "opencl"
	VariantCUDA    = "cuda"
	VariantSubband = "subband"
)

var variants = map[string]*Variant{
	VariantOpenCL: {
		Name: VariantOpenCL,
		Columns: []Column{
			{ColumnDMs, TypeInt, RoleDM},
			{"samplesPerBlock", TypeInt, RoleTiling},
			{"DMsPerBlock", TypeInt, RoleTiling},
			{"samplesPerThread", TypeInt, RoleTiling},
			{"DMsPerThread", TypeInt, RoleTiling},
			{ColumnGFLOPs, TypeFloat, RoleMeasurement},
			{"GFLOPs_err", TypeFloat, RoleMeasurement},
			{ColumnTime, TypeFloat, RoleMeasurement},
			{"time_err", TypeFloat, RoleMeasurement},
		},
		NoReuseColumns: []string{"DMsPerBlock", "DMsPerThread"},
	},
	VariantCUDA: {
		Name: VariantCUDA,
		Columns: []Column{
			{ColumnDMs, TypeInt, RoleDM},
			{"channels", TypeInt, RoleScenario},
			{"samples", TypeInt, RoleScenario},
			{"splitSeconds", TypeBool, RoleStrategy},
			{"local", TypeBool, RoleStrategy},
			{"unroll", TypeInt, RoleStrategy},
			{"samplesPerBlock", TypeInt, RoleTiling},
			{"DMsPerBlock", TypeInt, RoleTiling},
			{"samplesPerThread", TypeInt, RoleTiling},
			{"DMsPerThread", TypeInt, RoleTiling},
			{ColumnGFLOPs, TypeFloat, RoleMeasurement},
			{ColumnTime, TypeFloat, RoleMeasurement},
			{"time_err", TypeFloat, RoleMeasurement},
			{"cov", TypeFloat, RoleMeasurement},
		},
		MemoryColumn:   "local",
		SplitColumn:    "splitSeconds",
		NoReuseColumns: []string{"DMsPerBlock", "DMsPerThread"},
	},
	VariantSubband: {
		Name: VariantSubband,
		Columns: []Column{
			{"beams", TypeInt, RoleScenario},
			{"subBeams", TypeInt, RoleScenario},
			{"subbandingDMs", TypeInt, RoleScenario},
			{ColumnDMs, TypeInt, RoleDM},
			{"subbands", TypeInt, RoleScenario},
			{"channels", TypeInt, RoleScenario},
			{"zappedChannels", TypeInt, RoleScenario},
			{"samples", TypeInt, RoleScenario},
			{"split", TypeBool, RoleStrategy},
			{"local", TypeBool, RoleStrategy},
			{"unroll", TypeInt, RoleStrategy},
			{"nrThreadsD0", TypeInt, RoleTiling},
			{"nrThreadsD1", TypeInt, RoleTiling},
			{"nrItemsD0", TypeInt, RoleTiling},
			{"nrItemsD1", TypeInt, RoleTiling},
			{ColumnGFLOPs, TypeFloat, RoleMeasurement},
			{ColumnTime, TypeFloat, RoleMeasurement},
			{"time_err", TypeFloat, RoleMeasurement},
			{"cov", TypeFloat, RoleMeasurement},
		},
		MemoryColumn:   "local",
		SplitColumn:    "split",
		NoReuseColumns: []string{"nrThreadsD1", "nrItemsD1"},
	},
}

// Lookup returns the variant with the given name (case-insensitive).
func Lookup(name string) (*Variant, error) {
	v, ok := variants[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownVariant, name, strings.Join(Names(), ", "))
	}
	return v, nil
}

// Names returns the names of all variants, sorted.
func Names() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the variant name.
func (v *Variant) String() string {
	return v.Name
}

// ColumnNames returns the input column names in file order.
func (v *Variant) ColumnNames() []string {
	names := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		names[i] = c.Name
	}
	return names
}

// ByRole returns the names of the columns having any of the given roles, in file order.
func (v *Variant) ByRole(roles ...Role) []string {
	var names []string
	for _, c := range v.Columns {
		for _, r := range roles {
			if c.Role == r {
				names = append(names, c.Name)
				break
			}
		}
	}
	return names
}

// ScenarioColumns returns the scenario dimensions, in file order.
func (v *Variant) ScenarioColumns() []string {
	return v.ByRole(RoleScenario)
}

// Column returns the column with the given name.
func (v *Variant) Column(name string) (Column, bool) {
	for _, c := range v.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsParameter reports whether name is a strategy or tiling column.
func (v *Variant) IsParameter(name string) bool {
	c, ok := v.Column(name)
	return ok && (c.Role == RoleStrategy || c.Role == RoleTiling)
}

// ConfigurationColumns returns the strategy columns followed by the tiling columns.
func (v *Variant) ConfigurationColumns() []string {
	return append(v.ByRole(RoleStrategy), v.ByRole(RoleTiling)...)
}

// TieBreakColumns is the total order used to pick one row among rows sharing
// an extremal value: strategy, tiling, then measurement columns, ascending.
// Callers append the id column to make it total.
func (v *Variant) TieBreakColumns() []string {
	return append(v.ConfigurationColumns(), v.ByRole(RoleMeasurement)...)
}

// SameScenario reports whether both variants filter on the same scenario columns.
func (v *Variant) SameScenario(other *Variant) bool {
	a, b := v.ScenarioColumns(), other.ScenarioColumns()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
