package report

import (
	"strings"
	"testing"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

// TestChartGenerator_BarChart tests bar scaling.
func TestChartGenerator_BarChart(t *testing.T) {
	gen := NewChartGenerator()

	chart := gen.GenerateBarChart([]string{"1", "2"}, []float64{10, 5}, 40)
	lines := strings.Split(strings.TrimSuffix(chart, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), chart)
	}
	full := strings.Count(lines[0], "█")
	half := strings.Count(lines[1], "█")
	if full == 0 || half != full/2 {
		t.Errorf("bars = %d and %d, want the second half the first", full, half)
	}

	if gen.GenerateBarChart([]string{"a"}, nil, 40) != "" {
		t.Error("mismatched labels and values should give an empty chart")
	}
}

// TestChartGenerator_GroupChartRebins tests that long histograms are rebinned.
func TestChartGenerator_GroupChartRebins(t *testing.T) {
	gen := NewChartGenerator()

	records := make([][]any, 100)
	for i := range records {
		records[i] = []any{int64(i), int64(1)}
	}
	chart := gen.GenerateGroupChart(report.Group{DM: 1, Records: records}, 10, 60)

	lines := strings.Split(strings.TrimSuffix(chart, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("got %d bars, want 10", len(lines))
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[0]), "0-9 ") {
		t.Errorf("first bar label = %q, want 0-9", lines[0])
	}
	if !strings.HasSuffix(lines[9], " 10.0") {
		t.Errorf("last bar = %q, want sum 10.0", lines[9])
	}

	if gen.GenerateGroupChart(report.Group{DM: 1}, 10, 60) != "" {
		t.Error("empty group should give an empty chart")
	}
}

// TestChartGenerator_Sparkline tests the sparkline range.
func TestChartGenerator_Sparkline(t *testing.T) {
	gen := NewChartGenerator()

	line := gen.GenerateSparkline([]float64{1, 2, 4}, 60)
	if !strings.HasPrefix(line, "▁") || !strings.Contains(line, "█") {
		t.Errorf("sparkline = %q", line)
	}
	if !strings.HasSuffix(line, "[1.0, 4.0]") {
		t.Errorf("sparkline range = %q", line)
	}

	if gen.GenerateSparkline(nil, 60) != "" {
		t.Error("empty values should give an empty sparkline")
	}
	if got := len([]rune(strings.Fields(gen.GenerateSparkline(make([]float64, 200), 20))[0])); got != 20 {
		t.Errorf("downsampled sparkline has %d points, want 20", got)
	}
}
