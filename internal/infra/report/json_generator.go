package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
)

// JSONGenerator generates JSON format reports.
type JSONGenerator struct{}

// NewJSONGenerator creates a new JSON generator.
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Generate writes r as one indented JSON document.
func (g *JSONGenerator) Generate(w io.Writer, r *report.Result) error {
	content, err := json.MarshalIndent(g.buildJSON(r), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	content = append(content, '\n')

	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write %s output: %w", r.Command, err)
	}
	return nil
}

// Format returns the format this generator produces.
func (g *JSONGenerator) Format() report.Format {
	return report.FormatJSON
}

// jsonReport represents the JSON report structure.
type jsonReport struct {
	Meta    jsonMeta    `json:"meta"`
	Columns []string    `json:"columns,omitempty"`
	Records *[][]any    `json:"records,omitempty"`
	Groups  []jsonGroup `json:"groups,omitempty"`
}

// jsonMeta represents report metadata.
type jsonMeta struct {
	Command     string `json:"command"`
	Table       string `json:"table,omitempty"`
	Format      string `json:"format"`
	GeneratedAt string `json:"generated_at"`
	Count       int    `json:"count"`
}

// jsonGroup represents the records of one DM.
type jsonGroup struct {
	DM      int64   `json:"dm"`
	Records [][]any `json:"records"`
}

// buildJSON builds the JSON report structure. Empty results keep an empty
// records array so consumers can tell them from grouped output.
func (g *JSONGenerator) buildJSON(r *report.Result) *jsonReport {
	generatedAt := r.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	out := &jsonReport{
		Meta: jsonMeta{
			Command:     r.Command,
			Table:       r.Table,
			Format:      report.FormatJSON.String(),
			GeneratedAt: generatedAt.Format(time.RFC3339),
			Count:       r.Len(),
		},
		Columns: r.Columns,
	}

	if r.Grouped() {
		out.Groups = make([]jsonGroup, len(r.Groups))
		for i, group := range r.Groups {
			out.Groups[i] = jsonGroup{DM: group.DM, Records: nonNil(group.Records)}
		}
		return out
	}

	records := nonNil(r.Records)
	out.Records = &records
	return out
}

func nonNil(records [][]any) [][]any {
	if records == nil {
		return [][]any{}
	}
	return records
}
