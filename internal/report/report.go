// Package report aggregates enriched timesheets into the shift-accounting
// report: one row per entry plus totals per employee, per day and per job.
package report

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/model"
)

// Report statuses.
const (
	StatusOK                = "ok"
	StatusNoMatchingProject = "no_matching_project"
)

// clockLayout formats entry start and end times.
const clockLayout = "15:04"

// FileRef is an attachment shown alongside an entry.
type FileRef struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Entry is one timesheet row.
type Entry struct {
	TimesheetID int64           `json:"timesheet_id" yaml:"timesheet_id"`
	Date        string          `json:"date" yaml:"date"`
	Employee    string          `json:"employee" yaml:"employee"`
	UserID      int64           `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	JobcodeID   int64           `json:"jobcode_id,omitempty" yaml:"jobcode_id,omitempty"`
	JobPath     string          `json:"job_path" yaml:"job_path"`
	Start       string          `json:"start,omitempty" yaml:"start,omitempty"`
	End         string          `json:"end,omitempty" yaml:"end,omitempty"`
	Hours       int             `json:"hours" yaml:"hours"`
	Minutes     int             `json:"minutes" yaml:"minutes"`
	Decimal     decimal.Decimal `json:"decimal_hours" yaml:"decimal_hours"`
	Notes       string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Files       []FileRef       `json:"files,omitempty" yaml:"files,omitempty"`
	OnTheClock  bool            `json:"on_the_clock,omitempty" yaml:"on_the_clock,omitempty"`
}

// EmployeeSummary totals one employee's entries.
type EmployeeSummary struct {
	Employee   string          `json:"employee" yaml:"employee"`
	UserID     int64           `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	TotalHours decimal.Decimal `json:"total_hours" yaml:"total_hours"`
	Entries    []Entry         `json:"entries" yaml:"entries"`
}

// DailySummary totals one day's entries.
type DailySummary struct {
	Date       string          `json:"date" yaml:"date"`
	TotalHours decimal.Decimal `json:"total_hours" yaml:"total_hours"`
	Entries    []Entry         `json:"entries" yaml:"entries"`
}

// JobcodeSummary totals the entries logged against one job path.
type JobcodeSummary struct {
	JobPath    string          `json:"job_path" yaml:"job_path"`
	JobcodeID  int64           `json:"jobcode_id,omitempty" yaml:"jobcode_id,omitempty"`
	TotalHours decimal.Decimal `json:"total_hours" yaml:"total_hours"`
	EntryCount int             `json:"entry_count" yaml:"entry_count"`
}

// Report is the aggregated view of a set of enriched timesheets.
type Report struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	Start       string    `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	End         string    `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Project     string    `json:"project,omitempty" yaml:"project,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero" yaml:"generated_at,omitempty"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	Entries           []Entry           `json:"entries" yaml:"entries"`
	EmployeeSummaries []EmployeeSummary `json:"employee_summaries" yaml:"employee_summaries"`
	DailySummaries    []DailySummary    `json:"daily_summaries" yaml:"daily_summaries"`
	JobcodeBreakdown  []JobcodeSummary  `json:"jobcode_breakdown" yaml:"jobcode_breakdown"`
	TotalHours        decimal.Decimal   `json:"total_hours" yaml:"total_hours"`
}

// WithPeriod fills the report metadata and returns r.
func (r *Report) WithPeriod(id string, rng daterange.Range, project string, generatedAt time.Time) *Report {
	r.ID = id
	r.Start = rng.StartDate()
	r.End = rng.EndDate()
	r.Project = project
	r.GeneratedAt = generatedAt
	return r
}

// IsEmpty reports whether the report has no entries.
func (r *Report) IsEmpty() bool {
	return len(r.Entries) == 0
}

// SplitDuration converts seconds into whole hours and rounded minutes. A
// rounded 60 carries into the hours.
func SplitDuration(seconds int64) (hours, minutes int) {
	if seconds <= 0 {
		return 0, 0
	}
	hours = int(seconds / 3600)
	minutes = int(math.Round(float64(seconds%3600) / 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return hours, minutes
}

// DecimalHours returns hours + minutes/60 rounded to two places.
func DecimalHours(hours, minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(hours)).
		Add(decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))).
		Round(2)
}

// Aggregate sorts entries by date, employee name and timesheet id and groups
// them. Totals are exact sums of the two-place entry hours, so each group's
// entries always add up to its total. Aggregate never fails; entries missing
// a date or employee land in an "Unknown" bucket.
func Aggregate(entries []model.EnrichedTimesheet) *Report {
	rows := make([]Entry, 0, len(entries))
	for i := range entries {
		rows = append(rows, newEntry(&entries[i]))
	}

	// Collators keep internal buffers and are not safe for concurrent use.
	coll := collate.New(language.English)
	slices.SortStableFunc(rows, func(a, b Entry) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := coll.CompareString(a.Employee, b.Employee); c != 0 {
			return c
		}
		return cmp.Compare(a.TimesheetID, b.TimesheetID)
	})

	return &Report{
		Status:            StatusOK,
		Entries:           rows,
		EmployeeSummaries: groupByEmployee(rows),
		DailySummaries:    groupByDate(rows),
		JobcodeBreakdown:  groupByJob(rows, coll),
		TotalHours:        sum(rows),
	}
}

// Empty returns a report with no entries and the given status.
func Empty(status string) *Report {
	r := Aggregate(nil)
	r.Status = status
	return r
}

func newEntry(e *model.EnrichedTimesheet) Entry {
	hours, minutes := SplitDuration(e.Duration)
	row := Entry{
		TimesheetID: e.ID,
		Date:        e.Date,
		Employee:    e.EmployeeName(),
		UserID:      e.UserID,
		JobcodeID:   e.JobcodeID,
		JobPath:     e.JobPath,
		Hours:       hours,
		Minutes:     minutes,
		Decimal:     DecimalHours(hours, minutes),
		Notes:       strings.TrimSpace(e.Notes),
		OnTheClock:  e.OnTheClock,
	}
	if row.Date == "" {
		row.Date = model.UnknownLabel
	}
	if row.JobPath == "" {
		row.JobPath = model.UnknownLabel
	}
	if e.User == nil {
		row.UserID = 0
	}
	if !e.Start.IsZero() {
		row.Start = e.Start.Format(clockLayout)
	}
	if !e.End.IsZero() {
		row.End = e.End.Format(clockLayout)
	}
	for _, f := range e.Files {
		row.Files = append(row.Files, FileRef{ID: f.ID, Name: f.FileName, URL: f.URL})
	}
	return row
}

// groupByEmployee groups in order of first appearance. Entries without a
// resolved user share the Unknown group.
func groupByEmployee(rows []Entry) []EmployeeSummary {
	type key struct {
		userID int64
		name   string
	}
	index := make(map[key]int)
	groups := []EmployeeSummary{}

	for _, row := range rows {
		k := key{userID: row.UserID, name: row.Employee}
		if row.UserID == 0 {
			k.name = model.UnknownLabel
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, EmployeeSummary{Employee: row.Employee, UserID: row.UserID})
		}
		groups[i].Entries = append(groups[i].Entries, row)
	}
	for i := range groups {
		groups[i].TotalHours = sum(groups[i].Entries)
	}
	return groups
}

// groupByDate relies on rows already being date-sorted.
func groupByDate(rows []Entry) []DailySummary {
	groups := []DailySummary{}
	for _, row := range rows {
		if n := len(groups); n > 0 && groups[n-1].Date == row.Date {
			groups[n-1].Entries = append(groups[n-1].Entries, row)
			continue
		}
		groups = append(groups, DailySummary{Date: row.Date, Entries: []Entry{row}})
	}
	for i := range groups {
		groups[i].TotalHours = sum(groups[i].Entries)
	}
	return groups
}

func groupByJob(rows []Entry, coll *collate.Collator) []JobcodeSummary {
	index := make(map[string]int)
	groups := []JobcodeSummary{}
	for _, row := range rows {
		i, ok := index[row.JobPath]
		if !ok {
			i = len(groups)
			index[row.JobPath] = i
			groups = append(groups, JobcodeSummary{JobPath: row.JobPath, JobcodeID: row.JobcodeID, TotalHours: decimal.Zero})
		}
		groups[i].TotalHours = groups[i].TotalHours.Add(row.Decimal)
		groups[i].EntryCount++
	}
	slices.SortFunc(groups, func(a, b JobcodeSummary) int {
		return coll.CompareString(a.JobPath, b.JobPath)
	})
	return groups
}

func sum(rows []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Decimal)
	}
	return total
}
