package schema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned when a result line does not match the variant.
var ErrMalformedLine = errors.New("malformed result line")

// CommentMarker starts a line that is skipped by the reader.
const CommentMarker = "#"

const maxLineSize = 1024 * 1024

// RecordReader reads result records lazily from a text source.
// Empty lines and lines starting with CommentMarker are skipped.
type RecordReader struct {
	variant *Variant
	scanner *bufio.Scanner
	line    int
	skipped int
}

// NewRecordReader creates a reader that parses lines of r according to v.
func NewRecordReader(r io.Reader, v *Variant) *RecordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &RecordReader{variant: v, scanner: scanner}
}

// Next returns the values of the next record, typed int64 or float64 per column.
// It returns io.EOF when the source is exhausted.
func (r *RecordReader) Next() ([]any, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSuffix(r.scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, CommentMarker) {
			r.skipped++
			continue
		}
		values, err := ParseLine(r.variant, text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return values, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Line returns the number of the last line read.
func (r *RecordReader) Line() int {
	return r.line
}

// Skipped returns how many empty or comment lines were skipped so far.
func (r *RecordReader) Skipped() int {
	return r.skipped
}

// ParseLine splits line on single spaces and converts every field to the type of its column.
func ParseLine(v *Variant, line string) ([]any, error) {
	fields := strings.Split(line, " ")
	if len(fields) != len(v.Columns) {
		return nil, fmt.Errorf("%w: got %d fields, variant %s expects %d",
			ErrMalformedLine, len(fields), v.Name, len(v.Columns))
	}

	values := make([]any, len(fields))
	for i, field := range fields {
		value, err := parseField(v.Columns[i], field)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d (%s): %v", ErrMalformedLine, i+1, v.Columns[i].Name, err)
		}
		values[i] = value
	}
	return values, nil
}

func parseField(c Column, field string) (any, error) {
	switch c.Type {
	case TypeInt, TypeBool:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", field)
		}
		if n < 0 {
			return nil, fmt.Errorf("%q is negative", field)
		}
		if c.Type == TypeBool && n > 1 {
			return nil, fmt.Errorf("%q is not 0 or 1", field)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", field)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not finite", field)
		}
		if f < 0 {
			return nil, fmt.Errorf("%q is negative", field)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", c.Type)
	}
}
