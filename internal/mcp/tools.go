package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/enrich"
	"github.com/gorewood/shiftsheet/internal/export"
	"github.com/gorewood/shiftsheet/internal/jobcode"
)

// --- Shared types ---

// JobcodeResult is a job code with its display path.
type JobcodeResult struct {
	ID          int64  `json:"id"                    jsonschema:"jobcode id"`
	ParentID    int64  `json:"parent_id,omitempty"   jsonschema:"parent jobcode id (absent for top-level jobs)"`
	Name        string `json:"name"                  jsonschema:"jobcode name"`
	ShortCode   string `json:"short_code,omitempty"  jsonschema:"jobcode short code"`
	Type        string `json:"type"                  jsonschema:"jobcode type: regular, pto, paid_break, unpaid_break or unpaid_time_off"`
	Active      bool   `json:"active"                jsonschema:"whether the jobcode is active"`
	Path        string `json:"path"                  jsonschema:"full hierarchy path from the top-level job"`
	Descendants int    `json:"descendants,omitempty" jsonschema:"number of child tasks at any depth"`
}

// --- timesheet_report tool ---

// ReportInput is the input for the timesheet_report tool.
type ReportInput struct {
	StartDate         string `json:"start_date,omitempty"          jsonschema:"first day (YYYY-MM-DD) or relative span such as 7d or 2w"`
	EndDate           string `json:"end_date,omitempty"            jsonschema:"last day (YYYY-MM-DD); defaults to today"`
	Period            string `json:"period,omitempty"              jsonschema:"preset period instead of dates: today, yesterday, this_week, last_week, this_month, last_month"`
	Project           string `json:"project,omitempty"             jsonschema:"project name, short code, partial name or numeric jobcode id"`
	JobcodeID         int64  `json:"jobcode_id,omitempty"          jsonschema:"exact jobcode id; takes precedence over project"`
	IncludeAllMatches bool   `json:"include_all_matches,omitempty" jsonschema:"when project matches several jobs, report on all of them instead of failing"`
	Format            string `json:"format,omitempty"              jsonschema:"rendering of the text content: text (default), markdown, csv, json or yaml"`
}

// ReportRow is one timesheet entry.
type ReportRow struct {
	TimesheetID int64    `json:"timesheet_id"       jsonschema:"timesheet id"`
	Date        string   `json:"date"               jsonschema:"work date (YYYY-MM-DD) or Unknown"`
	Employee    string   `json:"employee"           jsonschema:"employee display name or Unknown"`
	JobPath     string   `json:"job_path"           jsonschema:"full jobcode hierarchy path"`
	Start       string   `json:"start,omitempty"    jsonschema:"clock-in time (HH:MM)"`
	End         string   `json:"end,omitempty"      jsonschema:"clock-out time (HH:MM)"`
	Hours       float64  `json:"hours"              jsonschema:"decimal hours, two places"`
	Notes       string   `json:"notes,omitempty"    jsonschema:"timesheet notes"`
	Files       []string `json:"files,omitempty"    jsonschema:"attached file URLs"`
}

// GroupTotal is the total for one employee, day or job.
type GroupTotal struct {
	Key     string  `json:"key"     jsonschema:"employee name, date or job path"`
	Entries int     `json:"entries" jsonschema:"number of entries"`
	Hours   float64 `json:"hours"   jsonschema:"total decimal hours"`
}

// ReportOutput is the output for the timesheet_report tool.
type ReportOutput struct {
	Status     string       `json:"status"               jsonschema:"ok or no_matching_project"`
	ReportID   string       `json:"report_id"            jsonschema:"identifier of this report run"`
	StartDate  string       `json:"start_date"           jsonschema:"first day covered"`
	EndDate    string       `json:"end_date"             jsonschema:"last day covered"`
	Project    string       `json:"project,omitempty"    jsonschema:"project reference as given"`
	JobcodeIDs []int64      `json:"jobcode_ids,omitempty" jsonschema:"jobcode ids the report covers"`
	TotalHours float64      `json:"total_hours"          jsonschema:"total decimal hours"`
	Entries    []ReportRow  `json:"entries"              jsonschema:"entries sorted by date then employee"`
	Employees  []GroupTotal `json:"employees"            jsonschema:"totals per employee"`
	Days       []GroupTotal `json:"days"                 jsonschema:"totals per day"`
	Jobs       []GroupTotal `json:"jobs"                 jsonschema:"totals per job path"`
	Warnings   []string     `json:"warnings,omitempty"   jsonschema:"lookups that failed; affected fields are empty"`
}

func handleTimesheetReport(deps Deps) mcp.ToolHandlerFor[ReportInput, ReportOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReportInput) (*mcp.CallToolResult, ReportOutput, error) {
		rng, err := daterange.Parse(input.StartDate, input.EndDate, input.Period, deps.Now())
		if err != nil {
			return nil, ReportOutput{}, err
		}
		format, err := export.ParseFormat(input.Format)
		if err != nil {
			return nil, ReportOutput{}, err
		}

		ref := jobcode.Reference{ID: input.JobcodeID, Text: strings.TrimSpace(input.Project)}
		result, err := deps.Backend.Run(ctx, enrich.Request{
			Range:   rng,
			Project: ref,
			Policy:  policyFor(input.IncludeAllMatches),
		})
		if err != nil {
			return nil, ReportOutput{}, toolError(err)
		}

		rep := result.Report(ref.String(), deps.Now())
		rendered, err := export.Render(rep, format)
		if err != nil {
			return nil, ReportOutput{}, fmt.Errorf("rendering report: %w", err)
		}

		deps.Logger.Info("report served",
			zap.String("run_id", result.RunID),
			zap.String("status", rep.Status),
			zap.Int("entries", len(rep.Entries)),
		)

		res := &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: rendered}}}
		return res, toReportOutput(rep, result.Resolution), nil
	}
}

// --- search_jobcodes tool ---

// SearchInput is the input for the search_jobcodes tool.
type SearchInput struct {
	Query           string `json:"query,omitempty"            jsonschema:"text to match against name and short code, or a jobcode id; empty lists all"`
	Limit           int    `json:"limit,omitempty"            jsonschema:"maximum results (default 25, max 200)"`
	IncludeInactive bool   `json:"include_inactive,omitempty" jsonschema:"include inactive jobcodes"`
}

// SearchOutput is the output for the search_jobcodes tool.
type SearchOutput struct {
	Count    int             `json:"count"    jsonschema:"number of jobcodes returned"`
	Jobcodes []JobcodeResult `json:"jobcodes" jsonschema:"matches, best first"`
}

func handleSearchJobcodes(deps Deps) mcp.ToolHandlerFor[SearchInput, SearchOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		dir, err := deps.Backend.Directory(ctx)
		if err != nil {
			return nil, SearchOutput{}, toolError(err)
		}

		limit := clampLimit(input.Limit)
		// Inactive codes are filtered after ranking, so search the whole tree.
		matches := jobcode.Search(input.Query, dir, 0)

		out := SearchOutput{Jobcodes: []JobcodeResult{}}
		for _, m := range matches {
			if !input.IncludeInactive && !m.Jobcode.Active {
				continue
			}
			out.Jobcodes = append(out.Jobcodes, toJobcodeResult(m.Jobcode, m.Path, m.Descendants))
			if len(out.Jobcodes) == limit {
				break
			}
		}
		out.Count = len(out.Jobcodes)
		return nil, out, nil
	}
}

// --- resolve_project tool ---

// ResolveInput is the input for the resolve_project tool.
type ResolveInput struct {
	Project           string `json:"project,omitempty"             jsonschema:"project name, short code, partial name or numeric jobcode id"`
	JobcodeID         int64  `json:"jobcode_id,omitempty"          jsonschema:"exact jobcode id"`
	IncludeAllMatches bool   `json:"include_all_matches,omitempty" jsonschema:"expand every match instead of reporting ambiguity"`
}

// ResolveOutput is the output for the resolve_project tool.
type ResolveOutput struct {
	Status  string          `json:"status"            jsonschema:"no_filter, matched, not_found or ambiguous"`
	IDs     []int64         `json:"ids,omitempty"     jsonschema:"jobcode ids a report would cover, including descendants"`
	Matches []JobcodeResult `json:"matches,omitempty" jsonschema:"jobcodes the reference matched directly"`
	Message string          `json:"message"           jsonschema:"human-readable summary"`
}

func handleResolveProject(deps Deps) mcp.ToolHandlerFor[ResolveInput, ResolveOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, ResolveOutput, error) {
		ref := jobcode.Reference{ID: input.JobcodeID, Text: strings.TrimSpace(input.Project)}
		if ref.IsZero() {
			return nil, ResolveOutput{}, fmt.Errorf("specify project or jobcode_id")
		}

		res, dir, err := deps.Backend.Resolve(ctx, ref, policyFor(input.IncludeAllMatches))
		if err != nil {
			return nil, ResolveOutput{}, toolError(err)
		}

		out := ResolveOutput{
			Status:  res.Kind.String(),
			IDs:     res.IDs,
			Message: resolveMessage(res),
		}
		for i, jc := range res.Matches {
			out.Matches = append(out.Matches, toJobcodeResult(jc, res.Paths[i], len(dir.DescendantsOf(jc.ID))))
		}
		return nil, out, nil
	}
}
