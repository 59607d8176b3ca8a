// Package report provides the output model of query commands.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
)

// Format represents the output format of a report.
type Format string

const (
	// FormatText prints space separated records, the default.
	FormatText Format = "text"
	// FormatJSON prints one indented JSON document.
	FormatJSON Format = "json"
	// FormatMarkdown prints Markdown tables.
	FormatMarkdown Format = "markdown"
)

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Validate checks if the format is valid.
func (f Format) Validate() error {
	switch f {
	case FormatText, FormatJSON, FormatMarkdown:
		return nil
	default:
		return fmt.Errorf("invalid report format: %s", f)
	}
}

// Group is the set of records of one DM in a grouped result.
type Group struct {
	DM      int64
	Records [][]any
}

// Result is the output of one command: either flat records or DM groups.
type Result struct {
	// Command is the command name as typed.
	Command string

	// Table is the queried table, empty for list.
	Table string

	// Columns names the fields of every record.
	Columns []string

	// Records holds flat results, one record per line.
	Records [][]any

	// Groups holds grouped results (histogram, single parameter space).
	Groups []Group

	// GeneratedAt is when the result was produced.
	GeneratedAt time.Time
}

// Grouped reports whether the result is made of DM groups.
func (r *Result) Grouped() bool {
	return r.Groups != nil
}

// Len returns the number of records, across all groups.
func (r *Result) Len() int {
	if !r.Grouped() {
		return len(r.Records)
	}
	n := 0
	for _, g := range r.Groups {
		n += len(g.Records)
	}
	return n
}

// Generator renders a result.
type Generator interface {
	// Generate writes r to w.
	Generate(w io.Writer, r *Result) error

	// Format returns the format this generator produces.
	Format() Format
}

func newResult(command, table string, columns ...string) *Result {
	return &Result{Command: command, Table: table, Columns: columns, GeneratedAt: time.Now()}
}

// FromTables lists table names, one per record.
func FromTables(command string, tables []string) *Result {
	r := newResult(command, "", "table")
	r.Records = make([][]any, len(tables))
	for i, t := range tables {
		r.Records[i] = []any{t}
	}
	return r
}

// FromStatistics renders [DM, min, max, avg, stddev, snr] records.
func FromStatistics(command, table string, stats []analysis.Statistic) *Result {
	r := newResult(command, table, "DMs", "min", "max", "avg", "stddev", "snr")
	r.Records = make([][]any, len(stats))
	for i, s := range stats {
		r.Records[i] = []any{s.DM, s.Min, s.Max, s.Avg, s.StdDev, s.SNR}
	}
	return r
}

// FromSNR renders [DM, snr] records.
func FromSNR(command, table string, points []analysis.SNRPoint) *Result {
	r := newResult(command, table, "DMs", "snr")
	r.Records = make([][]any, len(points))
	for i, p := range points {
		r.Records[i] = []any{p.DM, p.SNR}
	}
	return r
}

// FromSpeedups renders [DM, speedup] records.
func FromSpeedups(command, table string, speedups []analysis.Speedup) *Result {
	r := newResult(command, table, "DMs", "speedup")
	r.Records = make([][]any, len(speedups))
	for i, s := range speedups {
		r.Records[i] = []any{s.DM, s.Ratio}
	}
	return r
}

// FromRows renders projected rows. Columns come from the first row.
func FromRows(command, table string, rows []analysis.Row) *Result {
	r := newResult(command, table)
	r.Records = make([][]any, len(rows))
	for i, row := range rows {
		if i == 0 {
			r.Columns = row.Columns
		}
		r.Records[i] = row.Values
	}
	return r
}

// FromHistograms renders one group of [bucket, count] records per DM.
func FromHistograms(command, table string, histograms []*analysis.Histogram) *Result {
	r := newResult(command, table, "GFLOPs", "count")
	r.Groups = make([]Group, len(histograms))
	for i, h := range histograms {
		records := make([][]any, len(h.Buckets))
		for bucket, count := range h.Buckets {
			records[bucket] = []any{int64(bucket), count}
		}
		r.Groups[i] = Group{DM: h.DM, Records: records}
	}
	return r
}

// FromParameterSpaces renders one group of [value, best GFLOPs] records per DM.
func FromParameterSpaces(command, table, parameter string, spaces []analysis.ParameterSpace) *Result {
	r := newResult(command, table, parameter, "GFLOPs")
	r.Groups = make([]Group, len(spaces))
	for i, s := range spaces {
		records := make([][]any, len(s.Points))
		for j, p := range s.Points {
			records[j] = []any{p.Value, p.Best}
		}
		r.Groups[i] = Group{DM: s.DM, Records: records}
	}
	return r
}

// Undefined is how an undefined ratio is printed.
const Undefined = "undefined"

// FormatValue formats one record field.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return FormatFloat(x)
	case analysis.Ratio:
		if !x.Defined {
			return Undefined
		}
		return FormatFloat(x.Value)
	case string:
		return x
	case nil:
		return Undefined
	default:
		return fmt.Sprint(x)
	}
}

// FormatFloat formats f in its shortest round-trip form. Integral values keep
// a trailing ".0"; exponents below -4 or at or above 16 use e notation
// ("1e-05", "1.5e+16").
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if err != nil {
		return e
	}
	if f != 0 && (exp < -4 || exp >= 16) {
		return e
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
