// Package output provides formatters for command output.
package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// Format types for output.
type Format string

const (
	// FormatTable represents table output format.
	FormatTable Format = "table"
	// FormatJSON represents JSON output format.
	FormatJSON Format = "json"
	// FormatYAML represents YAML output format.
	FormatYAML Format = "yaml"
)

// DetectFormat picks the default output format: tables on a terminal,
// JSON when piped.
func DetectFormat(requested string) Format {
	if requested != "" {
		return Format(requested)
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// Formatter interface for all output types.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// NewFormatter creates the appropriate formatter for a format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// JSONFormatter outputs JSON format.
type JSONFormatter struct {
	Indent string
}

// Format implements the Formatter interface for JSON output.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent != "" {
		encoder.SetIndent("", f.Indent)
	}
	return encoder.Encode(data)
}

// YAMLFormatter outputs YAML format.
type YAMLFormatter struct{}

// Format implements the Formatter interface for YAML output.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	encoded, err := yaml.MarshalWithOptions(data,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// TableData is the generic shape the table formatter renders. Types
// that want table output convert themselves into it.
type TableData struct {
	Headers []string
	Rows    [][]string
}

// TableFormatter outputs table format.
type TableFormatter struct{}

// Format implements the Formatter interface for table output. Data
// that is not TableData falls back to JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	td, ok := data.(*TableData)
	if !ok {
		return (&JSONFormatter{Indent: "  "}).Format(w, data)
	}

	table := tablewriter.NewTable(w)
	if len(td.Headers) > 0 {
		headers := make([]any, len(td.Headers))
		for i, h := range td.Headers {
			headers[i] = h
		}
		table.Header(headers...)
	}
	for _, row := range td.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}
