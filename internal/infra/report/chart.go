package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

// ChartGenerator generates text-based charts for reports.
type ChartGenerator struct{}

// NewChartGenerator creates a new chart generator.
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

// GenerateGroupChart draws the records of one group as a horizontal bar
// chart: the first field labels the bar, the second is its length.
// Histograms with many buckets are rebinned to at most maxBars bars.
func (g *ChartGenerator) GenerateGroupChart(group report.Group, maxBars, width int) string {
	if len(group.Records) == 0 {
		return ""
	}

	labels := make([]string, 0, len(group.Records))
	values := make([]float64, 0, len(group.Records))
	for _, record := range group.Records {
		if len(record) < 2 {
			continue
		}
		v, ok := toFloat(record[1])
		if !ok {
			continue
		}
		labels = append(labels, report.FormatValue(record[0]))
		values = append(values, v)
	}

	if maxBars > 0 && len(values) > maxBars {
		labels, values = g.rebin(values, maxBars)
	}
	return g.GenerateBarChart(labels, values, width)
}

// GenerateSparkline draws one value per DM as a single line of block characters.
func (g *ChartGenerator) GenerateSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}

	min, max := g.minMax(values)
	rangeVal := max - min
	if rangeVal == 0 {
		rangeVal = 1
	}

	levels := []rune("▁▂▃▄▅▆▇█")
	var sb strings.Builder
	for _, v := range g.downsample(values, width) {
		idx := int((v - min) / rangeVal * float64(len(levels)-1))
		sb.WriteRune(levels[idx])
	}
	return fmt.Sprintf("%s  [%s, %s]", sb.String(), report.FormatFloat(min), report.FormatFloat(max))
}

// downsample reduces the number of data points to fit the width.
func (g *ChartGenerator) downsample(values []float64, width int) []float64 {
	if width < 2 || len(values) <= width {
		return values
	}

	step := float64(len(values)-1) / float64(width-1)
	result := make([]float64, width)

	for i := 0; i < width; i++ {
		pos := int(float64(i) * step)
		if pos >= len(values) {
			pos = len(values) - 1
		}
		result[i] = values[pos]
	}

	return result
}

// minMax finds the minimum and maximum values in a slice.
func (g *ChartGenerator) minMax(values []float64) (float64, float64) {
	min := math.Inf(1)
	max := math.Inf(-1)

	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if math.IsInf(min, 1) || math.IsInf(max, -1) {
		return 0, 1
	}

	return min, max
}

// rebin sums consecutive bars into bins bars labelled "first-last".
func (g *ChartGenerator) rebin(values []float64, bins int) ([]string, []float64) {
	size := int(math.Ceil(float64(len(values)) / float64(bins)))
	labels := make([]string, 0, bins)
	sums := make([]float64, 0, bins)

	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		labels = append(labels, fmt.Sprintf("%d-%d", start, end-1))
		sums = append(sums, sum)
	}

	return labels, sums
}

// GenerateBarChart generates a simple horizontal bar chart.
func (g *ChartGenerator) GenerateBarChart(labels []string, values []float64, width int) string {
	if len(labels) != len(values) || len(labels) == 0 {
		return ""
	}

	// Find max for scaling
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	var sb strings.Builder
	barWidth := width - maxLabelLen - 10
	if barWidth < 10 {
		barWidth = 10
	}

	for i, label := range labels {
		value := values[i]
		barLength := int(value / max * float64(barWidth))
		bar := strings.Repeat("█", barLength)
		sb.WriteString(fmt.Sprintf("%*s │%s%s %s\n", maxLabelLen, label, bar,
			strings.Repeat(" ", barWidth-barLength), report.FormatValue(value)))
	}

	return sb.String()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
