// Package report renders query results in text, JSON and Markdown.
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

// TextGenerator prints one record per line with fields separated by single
// spaces. Consecutive groups are separated by a blank line.
type TextGenerator struct{}

// NewTextGenerator creates a new text generator.
func NewTextGenerator() *TextGenerator {
	return &TextGenerator{}
}

// Generate writes r to w.
func (g *TextGenerator) Generate(w io.Writer, r *report.Result) error {
	bw := bufio.NewWriter(w)

	if r.Grouped() {
		for i, group := range r.Groups {
			if i > 0 {
				bw.WriteByte('\n')
			}
			writeRecords(bw, group.Records)
		}
	} else {
		writeRecords(bw, r.Records)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s output: %w", r.Command, err)
	}
	return nil
}

// Format returns the format this generator produces.
func (g *TextGenerator) Format() report.Format {
	return report.FormatText
}

func writeRecords(bw *bufio.Writer, records [][]any) {
	for _, record := range records {
		for i, v := range record {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(report.FormatValue(v))
		}
		bw.WriteByte('\n')
	}
}

// NewGenerator returns the generator of the given format.
func NewGenerator(format report.Format) (report.Generator, error) {
	switch format {
	case report.FormatText, "":
		return NewTextGenerator(), nil
	case report.FormatJSON:
		return NewJSONGenerator(), nil
	case report.FormatMarkdown:
		return NewMarkdownGenerator(), nil
	default:
		return nil, format.Validate()
	}
}
