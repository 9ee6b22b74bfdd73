package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gorewood/shiftsheet/internal/auth"
	"github.com/gorewood/shiftsheet/internal/jobcode"
	"github.com/gorewood/shiftsheet/internal/model"
	"github.com/gorewood/shiftsheet/internal/report"
	"github.com/gorewood/shiftsheet/internal/tsheets"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 200
)

// policyFor maps the include_all_matches flag to a resolution policy.
func policyFor(includeAll bool) jobcode.Policy {
	if includeAll {
		return jobcode.IncludeAll
	}
	return jobcode.RequireSingle
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultSearchLimit
	case limit > maxSearchLimit:
		return maxSearchLimit
	default:
		return limit
	}
}

// toolError adds a remedy to errors the caller can act on.
func toolError(err error) error {
	var apiErr *tsheets.APIError
	switch {
	case errors.Is(err, auth.ErrNoToken):
		return fmt.Errorf("%w; run 'shiftsheet token set' or set TSHEETS_ACCESS_TOKEN", err)
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		return fmt.Errorf("%w; the access token was rejected, refresh it with 'shiftsheet token set'", err)
	case errors.As(err, &apiErr) && apiErr.RateLimited():
		return fmt.Errorf("%w; rate limited by QuickBooks Time, retry shortly", err)
	default:
		return err
	}
}

func toJobcodeResult(jc model.Jobcode, path string, descendants int) JobcodeResult {
	return JobcodeResult{
		ID:          jc.ID,
		ParentID:    jc.ParentID,
		Name:        jc.Name,
		ShortCode:   jc.ShortCode,
		Type:        string(jc.Type),
		Active:      jc.Active,
		Path:        path,
		Descendants: descendants,
	}
}

// toReportOutput flattens a report into float64 totals for structured output.
func toReportOutput(rep *report.Report, res jobcode.Resolution) ReportOutput {
	out := ReportOutput{
		Status:     rep.Status,
		ReportID:   rep.ID,
		StartDate:  rep.Start,
		EndDate:    rep.End,
		Project:    rep.Project,
		JobcodeIDs: res.IDs,
		TotalHours: rep.TotalHours.InexactFloat64(),
		Entries:    make([]ReportRow, 0, len(rep.Entries)),
		Employees:  make([]GroupTotal, 0, len(rep.EmployeeSummaries)),
		Days:       make([]GroupTotal, 0, len(rep.DailySummaries)),
		Jobs:       make([]GroupTotal, 0, len(rep.JobcodeBreakdown)),
		Warnings:   rep.Warnings,
	}
	for _, e := range rep.Entries {
		out.Entries = append(out.Entries, ReportRow{
			TimesheetID: e.TimesheetID,
			Date:        e.Date,
			Employee:    e.Employee,
			JobPath:     e.JobPath,
			Start:       e.Start,
			End:         e.End,
			Hours:       e.Decimal.InexactFloat64(),
			Notes:       e.Notes,
			Files:       fileLinks(e.Files),
		})
	}
	for _, s := range rep.EmployeeSummaries {
		out.Employees = append(out.Employees, GroupTotal{Key: s.Employee, Entries: len(s.Entries), Hours: s.TotalHours.InexactFloat64()})
	}
	for _, s := range rep.DailySummaries {
		out.Days = append(out.Days, GroupTotal{Key: s.Date, Entries: len(s.Entries), Hours: s.TotalHours.InexactFloat64()})
	}
	for _, s := range rep.JobcodeBreakdown {
		out.Jobs = append(out.Jobs, GroupTotal{Key: s.JobPath, Entries: s.EntryCount, Hours: s.TotalHours.InexactFloat64()})
	}
	return out
}

// fileLinks prefers the download URL and falls back to the file name.
func fileLinks(files []report.FileRef) []string {
	if len(files) == 0 {
		return nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f.URL != "" {
			out = append(out, f.URL)
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func resolveMessage(res jobcode.Resolution) string {
	switch res.Kind {
	case jobcode.NoFilter:
		return "no project given; a report would cover every jobcode"
	case jobcode.NotFound:
		return fmt.Sprintf("no jobcode matches %q", res.Reference.String())
	case jobcode.Ambiguous:
		return fmt.Sprintf("%q matches %d jobcodes: %s; pass jobcode_id or include_all_matches",
			res.Reference.String(), len(res.Matches), strings.Join(res.Paths, "; "))
	default:
		return fmt.Sprintf("%q covers %d jobcodes under %s",
			res.Reference.String(), len(res.IDs), strings.Join(res.Paths, "; "))
	}
}
