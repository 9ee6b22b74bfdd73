// Package export renders a report in the supported output formats.
//
//   - text: styled tables for terminals, plain when piped
//   - markdown: tables suitable for pasting into documents
//   - csv: one row per entry
//   - json, yaml: the full report structure
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gorewood/shiftsheet/internal/output"
	"github.com/gorewood/shiftsheet/internal/report"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON, FormatYAML}

// ParseFormat accepts a format name or a common alias ("md", "yml", "txt").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	names := make([]string, 0, len(Formats))
	for _, f := range Formats {
		names = append(names, string(f))
	}
	return "", output.NewUserError(fmt.Sprintf("unknown format %q (want %s)", name, strings.Join(names, ", ")))
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Write renders r to w. Styling in text output follows isTTY.
func Write(w io.Writer, r *report.Report, format Format, isTTY bool) error {
	switch format {
	case FormatText:
		Text(output.NewPrinter(w, false, isTTY), r)
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatCSV:
		return CSV(w, r)
	case FormatJSON:
		return JSON(w, r)
	case FormatYAML:
		return YAML(w, r)
	default:
		return output.NewUserError(fmt.Sprintf("unknown format %q", format))
	}
}

// Render returns r as an unstyled string.
func Render(r *report.Report, format Format) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, r, format, false); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteFile renders r to path, creating parent directories as needed.
func WriteFile(path string, r *report.Report, format Format) error {
	content, err := Render(r, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return output.NewSystemError(fmt.Sprintf("failed to create directory for %s: %v", path, err))
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return output.NewSystemError(fmt.Sprintf("failed to write file %s: %v", path, err))
	}
	return nil
}

// hours formats a decimal hour value with two places.
func hours(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// duration formats an entry as "1h 30m" or "45m".
func duration(e report.Entry) string {
	if e.Hours > 0 {
		return fmt.Sprintf("%dh %02dm", e.Hours, e.Minutes)
	}
	return fmt.Sprintf("%dm", e.Minutes)
}

// clock joins start and end times, or returns "" when unknown.
func clock(e report.Entry) string {
	switch {
	case e.Start != "" && e.End != "":
		return e.Start + "-" + e.End
	case e.Start != "" && e.OnTheClock:
		return e.Start + "-"
	default:
		return ""
	}
}

func fileNames(e report.Entry) []string {
	names := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		names = append(names, f.Name)
	}
	return names
}

// emptyMessage explains why a report has no entries.
func emptyMessage(r *report.Report) string {
	if r.Status == report.StatusNoMatchingProject {
		return fmt.Sprintf("No job code matches project %q.", r.Project)
	}
	return "No timesheets found for this period."
}

// period formats the report's date span.
func period(r *report.Report) string {
	switch {
	case r.Start == "" && r.End == "":
		return ""
	case r.Start == r.End:
		return r.Start
	default:
		return r.Start + " to " + r.End
	}
}
