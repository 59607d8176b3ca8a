package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

// TestTextGenerator_Records tests flat output.
func TestTextGenerator_Records(t *testing.T) {
	stats := []analysis.Statistic{
		analysis.NewStatistic(10, 40, 60, 50, 8.16496580927726),
		analysis.NewStatistic(20, 7, 7, 7, 0),
	}

	var buf bytes.Buffer
	if err := NewTextGenerator().Generate(&buf, report.FromStatistics("statistics", "titan", stats)); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	want := "10 40.0 60.0 50.0 8.16496580927726 1.224744871391589\n" +
		"20 7.0 7.0 7.0 0.0 undefined\n"
	if got := buf.String(); got != want {
		t.Errorf("Generate() =\n%q\nwant\n%q", got, want)
	}
}

// TestTextGenerator_Groups tests the blank line between groups.
func TestTextGenerator_Groups(t *testing.T) {
	spaces := []analysis.ParameterSpace{
		{DM: 5, Points: []analysis.SpacePoint{{Value: 1, Best: 100}}},
		{DM: 10, Points: []analysis.SpacePoint{{Value: 1, Best: 60}, {Value: 2, Best: 40.5}}},
	}

	var buf bytes.Buffer
	r := report.FromParameterSpaces("singleParameterOptimizationSpace", "titan", "unroll", spaces)
	if err := NewTextGenerator().Generate(&buf, r); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	want := "1 100.0\n\n1 60.0\n2 40.5\n"
	if got := buf.String(); got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}

// TestTextGenerator_Empty tests that empty results print nothing.
func TestTextGenerator_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextGenerator().Generate(&buf, report.FromRows("tune", "titan", nil)); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Generate() wrote %q, want nothing", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// TestTextGenerator_WriteError tests that write errors are returned.
func TestTextGenerator_WriteError(t *testing.T) {
	r := report.FromTables("list", []string{"titan"})
	if err := NewTextGenerator().Generate(failingWriter{}, r); err == nil {
		t.Error("Generate() should fail on a broken writer")
	}
}

// TestNewGenerator tests generator selection.
func TestNewGenerator(t *testing.T) {
	for _, format := range []report.Format{report.FormatText, report.FormatJSON, report.FormatMarkdown} {
		gen, err := NewGenerator(format)
		if err != nil {
			t.Fatalf("NewGenerator(%s) failed: %v", format, err)
		}
		if gen.Format() != format {
			t.Errorf("NewGenerator(%s).Format() = %s", format, gen.Format())
		}
	}

	if _, err := NewGenerator("html"); err == nil {
		t.Error("NewGenerator(html) should fail")
	}
}
