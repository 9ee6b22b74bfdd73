package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/enrich"
	"github.com/gorewood/shiftsheet/internal/export"
	"github.com/gorewood/shiftsheet/internal/jobcode"
	shiftmcp "github.com/gorewood/shiftsheet/internal/mcp"
)

// reportFlags holds the flag values for the report command.
type reportFlags struct {
	start      string
	end        string
	period     string
	project    string
	jobcodeID  int64
	allMatches bool
	format     string
	out        string
}

// newReportCmd creates the report command.
func newReportCmd() *cobra.Command {
	return newReportCmdInternal(nil, time.Now)
}

// newReportCmdInternal creates the report command with an optional backend.
// If backend is nil, a real one is built from configuration when the command runs.
func newReportCmdInternal(backend shiftmcp.Backend, now func() time.Time) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a timesheet report for a date range",
		Long: `Build a timesheet report for a date range, optionally limited to a project.

The project may be a jobcode id, a name, a short code or part of a name.
Matching a parent job includes every task beneath it.

Examples:
  shiftsheet report --period last_week                      # Everything logged last week
  shiftsheet report --start 2025-01-01 --project MMC        # One project, Jan 1 to today
  shiftsheet report --start 7d --jobcode-id 25839           # Last 7 days for a jobcode id
  shiftsheet report --period this_month --out jan.md        # Write markdown to a file
  shiftsheet report --start 2w --format csv > hours.csv     # CSV for spreadsheets`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, backend, now, flags)
		},
	}

	cmd.Flags().StringVar(&flags.start, "start", "", "First day (YYYY-MM-DD) or a span such as 7d or 2w")
	cmd.Flags().StringVar(&flags.end, "end", "", "Last day (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVar(&flags.period, "period", "", "Preset period: "+strings.Join(daterange.Presets, ", "))
	cmd.Flags().StringVarP(&flags.project, "project", "p", "", "Project name, short code or jobcode id")
	cmd.Flags().Int64Var(&flags.jobcodeID, "jobcode-id", 0, "Exact jobcode id (takes precedence over --project)")
	cmd.Flags().BoolVar(&flags.allMatches, "all-matches", false, "Report on every job matching --project instead of failing")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format: text, markdown, csv, json or yaml")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

// runReport executes the report command.
func runReport(cmd *cobra.Command, backend shiftmcp.Backend, now func() time.Time, flags reportFlags) error {
	printer := newPrinter(cmd)

	rng, err := daterange.Parse(flags.start, flags.end, flags.period, now())
	if err != nil {
		return fail(printer, err)
	}
	format, err := reportFormat(cmd, flags)
	if err != nil {
		return fail(printer, err)
	}

	be, release, err := backendFor(cmd.Context(), backend, cmd.ErrOrStderr())
	if err != nil {
		return fail(printer, err)
	}
	defer release()

	ref := jobcode.Reference{ID: flags.jobcodeID, Text: strings.TrimSpace(flags.project)}
	policy := jobcode.RequireSingle
	if flags.allMatches {
		policy = jobcode.IncludeAll
	}

	result, err := be.Run(cmd.Context(), enrich.Request{Range: rng, Project: ref, Policy: policy})
	if err != nil {
		return fail(printer, err)
	}
	rep := result.Report(ref.String(), now())

	if flags.out == "" {
		if err := export.Write(cmd.OutOrStdout(), rep, format, useColor(cmd)); err != nil {
			return fail(printer, err)
		}
		return nil
	}

	if err := export.WriteFile(flags.out, rep, format); err != nil {
		return fail(printer, err)
	}
	return printer.Success(map[string]any{
		"status":      rep.Status,
		"path":        flags.out,
		"format":      string(format),
		"entries":     len(rep.Entries),
		"total_hours": rep.TotalHours.StringFixed(2),
		"message": fmt.Sprintf("Wrote %d entries (%sh) to %s",
			len(rep.Entries), rep.TotalHours.StringFixed(2), flags.out),
	})
}

// reportFormat picks the output format: --format when given, then the --out
// extension, then json under --json, then text.
func reportFormat(cmd *cobra.Command, flags reportFlags) (export.Format, error) {
	if flags.format != "" {
		return export.ParseFormat(flags.format)
	}
	if flags.out != "" {
		if ext := strings.TrimPrefix(filepath.Ext(flags.out), "."); ext != "" {
			if format, err := export.ParseFormat(ext); err == nil {
				return format, nil
			}
		}
	}
	if isJSONMode(cmd) {
		return export.FormatJSON, nil
	}
	return export.FormatText, nil
}
