package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorewood/shiftsheet/internal/output"
	"github.com/gorewood/shiftsheet/internal/report"
)

// Text prints the report as sections of aligned tables.
func Text(p *output.Printer, r *report.Report) {
	var header []string
	if pr := period(r); pr != "" {
		header = append(header, "Period:  "+pr)
	}
	if r.Project != "" {
		header = append(header, "Project: "+r.Project)
	}
	header = append(header, fmt.Sprintf("Entries: %d", len(r.Entries)))
	header = append(header, "Total:   "+hours(r.TotalHours)+"h")
	p.Box("Shift report", strings.Join(header, "\n"))

	if r.IsEmpty() {
		p.Println()
		p.Println(emptyMessage(r))
		writeTextWarnings(p, r)
		return
	}

	p.Section("Entries")
	rows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		rows = append(rows, []string{
			e.Date, e.Employee, e.JobPath, clock(e), duration(e), hours(e.Decimal), e.Notes,
		})
	}
	p.AlignedTable(
		[]string{"Date", "Employee", "Job", "Time", "Duration", "Hours", "Notes"},
		rows,
		[]output.Align{output.AlignLeft, output.AlignLeft, output.AlignLeft, output.AlignLeft, output.AlignRight, output.AlignRight},
	)

	p.Section("Employees")
	rows = rows[:0]
	for _, g := range r.EmployeeSummaries {
		rows = append(rows, []string{g.Employee, strconv.Itoa(len(g.Entries)), hours(g.TotalHours)})
	}
	p.AlignedTable([]string{"Employee", "Entries", "Hours"}, rows,
		[]output.Align{output.AlignLeft, output.AlignRight, output.AlignRight})

	p.Section("Daily totals")
	rows = rows[:0]
	for _, g := range r.DailySummaries {
		rows = append(rows, []string{g.Date, strconv.Itoa(len(g.Entries)), hours(g.TotalHours)})
	}
	p.AlignedTable([]string{"Date", "Entries", "Hours"}, rows,
		[]output.Align{output.AlignLeft, output.AlignRight, output.AlignRight})

	p.Section("Jobs")
	rows = rows[:0]
	for _, g := range r.JobcodeBreakdown {
		rows = append(rows, []string{g.JobPath, strconv.Itoa(g.EntryCount), hours(g.TotalHours)})
	}
	p.AlignedTable([]string{"Job", "Entries", "Hours"}, rows,
		[]output.Align{output.AlignLeft, output.AlignRight, output.AlignRight})

	if files := attachments(r); len(files) > 0 {
		p.Section("Attachments")
		for _, line := range files {
			p.Println(line)
		}
	}

	p.Println()
	p.TotalLine("Total", hours(r.TotalHours)+"h")
	writeTextWarnings(p, r)
}

func writeTextWarnings(p *output.Printer, r *report.Report) {
	for _, w := range r.Warnings {
		p.Warn("%s", w)
	}
}

// attachments lists "date employee: name url" for every attached file.
func attachments(r *report.Report) []string {
	var lines []string
	for _, e := range r.Entries {
		for _, f := range e.Files {
			line := fmt.Sprintf("%s %s: %s", e.Date, e.Employee, f.Name)
			if f.URL != "" {
				line += " " + f.URL
			}
			lines = append(lines, line)
		}
	}
	return lines
}
