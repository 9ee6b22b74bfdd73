package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorewood/shiftsheet/internal/report"
)

// Markdown formats the report as a markdown document with one table per
// grouping.
func Markdown(r *report.Report) string {
	var b strings.Builder

	b.WriteString("# Shift report\n\n")
	if pr := period(r); pr != "" {
		fmt.Fprintf(&b, "- **Period:** %s\n", pr)
	}
	if r.Project != "" {
		fmt.Fprintf(&b, "- **Project:** %s\n", mdEscape(r.Project))
	}
	fmt.Fprintf(&b, "- **Entries:** %d\n", len(r.Entries))
	fmt.Fprintf(&b, "- **Total hours:** %s\n", hours(r.TotalHours))

	if r.IsEmpty() {
		fmt.Fprintf(&b, "\n%s\n", emptyMessage(r))
		writeMarkdownWarnings(&b, r)
		return b.String()
	}

	b.WriteString("\n## Entries\n\n")
	writeMarkdownTable(&b, []string{"Date", "Employee", "Job", "Time", "Hours", "Notes", "Files"}, "|---|---|---|---|--:|---|---|", func(row func(...string)) {
		for _, e := range r.Entries {
			row(e.Date, e.Employee, e.JobPath, clock(e), hours(e.Decimal), e.Notes, markdownFiles(e))
		}
	})

	b.WriteString("\n## Employees\n\n")
	writeMarkdownTable(&b, []string{"Employee", "Entries", "Hours"}, "|---|--:|--:|", func(row func(...string)) {
		for _, g := range r.EmployeeSummaries {
			row(g.Employee, strconv.Itoa(len(g.Entries)), hours(g.TotalHours))
		}
	})

	b.WriteString("\n## Daily totals\n\n")
	writeMarkdownTable(&b, []string{"Date", "Entries", "Hours"}, "|---|--:|--:|", func(row func(...string)) {
		for _, g := range r.DailySummaries {
			row(g.Date, strconv.Itoa(len(g.Entries)), hours(g.TotalHours))
		}
	})

	b.WriteString("\n## Jobs\n\n")
	writeMarkdownTable(&b, []string{"Job", "Entries", "Hours"}, "|---|--:|--:|", func(row func(...string)) {
		for _, g := range r.JobcodeBreakdown {
			row(g.JobPath, strconv.Itoa(g.EntryCount), hours(g.TotalHours))
		}
	})

	fmt.Fprintf(&b, "\n**Total:** %sh\n", hours(r.TotalHours))
	writeMarkdownWarnings(&b, r)
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, headers []string, rule string, rows func(row func(...string))) {
	fmt.Fprintf(b, "| %s |\n%s\n", strings.Join(headers, " | "), rule)
	rows(func(cells ...string) {
		for i := range cells {
			cells[i] = mdEscape(cells[i])
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	})
}

func writeMarkdownWarnings(b *strings.Builder, r *report.Report) {
	if len(r.Warnings) == 0 {
		return
	}
	b.WriteString("\n> **Partial data:**\n")
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "> - %s\n", mdEscape(w))
	}
}

// markdownFiles links each attachment when a URL is known.
func markdownFiles(e report.Entry) string {
	parts := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		if f.URL == "" {
			parts = append(parts, f.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s](%s)", f.Name, f.URL))
	}
	return strings.Join(parts, ", ")
}

// mdEscape keeps cell text on one line and out of the table syntax.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
