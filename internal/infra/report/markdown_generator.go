package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

const (
	chartWidth   = 60
	chartMaxBars = 20
)

// MarkdownGenerator generates Markdown format reports.
type MarkdownGenerator struct {
	chartGen *ChartGenerator
}

// NewMarkdownGenerator creates a new Markdown generator.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{
		chartGen: NewChartGenerator(),
	}
}

// Generate writes r as a Markdown document: a title, one table for flat
// results or one section per DM for grouped results.
func (g *MarkdownGenerator) Generate(w io.Writer, r *report.Result) error {
	var sb strings.Builder

	g.writeTitle(&sb, r)

	if r.Grouped() {
		g.writeGroups(&sb, r)
	} else {
		g.writeTable(&sb, r.Columns, r.Records)
		g.writeTrend(&sb, r)
	}

	g.writeFooter(&sb, r)

	bw := bufio.NewWriter(w)
	bw.WriteString(sb.String())
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s output: %w", r.Command, err)
	}
	return nil
}

// Format returns the format this generator produces.
func (g *MarkdownGenerator) Format() report.Format {
	return report.FormatMarkdown
}

// writeTitle writes the report title.
func (g *MarkdownGenerator) writeTitle(sb *strings.Builder, r *report.Result) {
	sb.WriteString("# ")
	sb.WriteString(r.Command)
	if r.Table != "" {
		sb.WriteString(" - ")
		sb.WriteString(r.Table)
	}
	sb.WriteString("\n\n")
}

// writeTable writes records as a Markdown table.
func (g *MarkdownGenerator) writeTable(sb *strings.Builder, columns []string, records [][]any) {
	if len(records) == 0 {
		sb.WriteString("*No results*\n\n")
		return
	}

	if len(columns) == 0 {
		columns = make([]string, len(records[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("%d", i+1)
		}
	}

	sb.WriteString("| ")
	sb.WriteString(strings.Join(columns, " | "))
	sb.WriteString(" |\n|")
	for range columns {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, record := range records {
		fields := make([]string, len(record))
		for i, v := range record {
			fields[i] = report.FormatValue(v)
		}
		sb.WriteString("| ")
		sb.WriteString(strings.Join(fields, " | "))
		sb.WriteString(" |\n")
	}
	sb.WriteString("\n")
}

// writeGroups writes one section per DM with a chart and the table.
func (g *MarkdownGenerator) writeGroups(sb *strings.Builder, r *report.Result) {
	if len(r.Groups) == 0 {
		sb.WriteString("*No results*\n\n")
		return
	}

	for _, group := range r.Groups {
		sb.WriteString(fmt.Sprintf("## DM %d\n\n", group.DM))

		if chart := g.chartGen.GenerateGroupChart(group, chartMaxBars, chartWidth); chart != "" {
			sb.WriteString("```\n")
			sb.WriteString(chart)
			sb.WriteString("```\n\n")
		}

		g.writeTable(sb, r.Columns, group.Records)
	}
}

// writeTrend writes a sparkline of the last numeric column over DMs for
// per-DM results with at least two records.
func (g *MarkdownGenerator) writeTrend(sb *strings.Builder, r *report.Result) {
	if len(r.Records) < 2 || len(r.Columns) < 2 || r.Columns[0] != "DMs" {
		return
	}

	last := len(r.Columns) - 1
	values := make([]float64, 0, len(r.Records))
	for _, record := range r.Records {
		if last >= len(record) {
			return
		}
		var v float64
		switch x := record[last].(type) {
		case analysis.Ratio:
			if !x.Defined {
				continue
			}
			v = x.Value
		default:
			f, ok := toFloat(x)
			if !ok {
				return
			}
			v = f
		}
		values = append(values, v)
	}

	if line := g.chartGen.GenerateSparkline(values, chartWidth); line != "" {
		sb.WriteString(fmt.Sprintf("%s over DMs: `%s`\n\n", r.Columns[last], line))
	}
}

// writeFooter writes the report footer.
func (g *MarkdownGenerator) writeFooter(sb *strings.Builder, r *report.Result) {
	generatedAt := r.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Generated by tunedb at %s*\n", generatedAt.Format(time.RFC1123)))
}
