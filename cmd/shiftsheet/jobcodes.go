package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gorewood/shiftsheet/internal/jobcode"
	shiftmcp "github.com/gorewood/shiftsheet/internal/mcp"
	"github.com/gorewood/shiftsheet/internal/output"
)

// newJobcodesCmd creates the jobcodes command.
func newJobcodesCmd() *cobra.Command {
	return newJobcodesCmdInternal(nil)
}

// newJobcodesCmdInternal creates the jobcodes command with an optional backend.
func newJobcodesCmdInternal(backend shiftmcp.Backend) *cobra.Command {
	var limitFlag int
	var inactiveFlag bool

	cmd := &cobra.Command{
		Use:   "jobcodes [query]",
		Short: "Search job codes by name, short code or id",
		Long: `Search job codes by name, short code or id and show their full paths.

Exact matches rank first, then prefixes, then substrings. Without a query
every active job code is listed.

Examples:
  shiftsheet jobcodes dredg              # Find jobs containing "dredg"
  shiftsheet jobcodes 25839              # Look up a jobcode id
  shiftsheet jobcodes --inactive --json  # Everything, as JSON`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runJobcodes(cmd, backend, query, limitFlag, inactiveFlag)
		},
	}

	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 50, "Maximum results (0 for no limit)")
	cmd.Flags().BoolVar(&inactiveFlag, "inactive", false, "Include inactive job codes")

	return cmd
}

// runJobcodes executes the jobcodes command.
func runJobcodes(cmd *cobra.Command, backend shiftmcp.Backend, query string, limit int, inactive bool) error {
	printer := newPrinter(cmd)

	be, release, err := backendFor(cmd.Context(), backend, cmd.ErrOrStderr())
	if err != nil {
		return fail(printer, err)
	}
	defer release()

	dir, err := be.Directory(cmd.Context())
	if err != nil {
		return fail(printer, err)
	}

	var matches []jobcode.Match
	for _, m := range jobcode.Search(query, dir, 0) {
		if !inactive && !m.Jobcode.Active {
			continue
		}
		matches = append(matches, m)
		if limit > 0 && len(matches) == limit {
			break
		}
	}

	if printer.IsJSON() {
		if matches == nil {
			matches = []jobcode.Match{}
		}
		return printer.WriteJSON(map[string]any{"count": len(matches), "jobcodes": matches})
	}

	if len(matches) == 0 {
		printer.Println(fmt.Sprintf("No job codes match %q.", query))
		return nil
	}
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			strconv.FormatInt(m.Jobcode.ID, 10),
			m.Path,
			string(m.Jobcode.Type),
			tasksLabel(m.Descendants),
			activeLabel(m.Jobcode.Active),
		})
	}
	printer.AlignedTable(
		[]string{"ID", "Job", "Type", "Tasks", "Status"},
		rows,
		[]output.Align{output.AlignRight, output.AlignLeft, output.AlignLeft, output.AlignRight},
	)
	return nil
}

func tasksLabel(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// errNoReference is returned by lookups that need a project.
var errNoReference = output.NewUserError("specify a project or --jobcode-id")

// newResolveCmd creates the resolve command.
func newResolveCmd() *cobra.Command {
	return newResolveCmdInternal(nil)
}

// newResolveCmdInternal creates the resolve command with an optional backend.
func newResolveCmdInternal(backend shiftmcp.Backend) *cobra.Command {
	var jobcodeIDFlag int64
	var allMatchesFlag bool

	cmd := &cobra.Command{
		Use:   "resolve [project]",
		Short: "Show which job codes a project reference covers",
		Long: `Show which job codes a project reference matches and which ids a report
on it would include. Ambiguous references list every candidate.

Examples:
  shiftsheet resolve MMC                 # Match by name
  shiftsheet resolve --jobcode-id 25839  # Expand a jobcode id
  shiftsheet resolve dredg --all-matches # Expand every match`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := jobcode.Reference{ID: jobcodeIDFlag}
			if len(args) == 1 {
				ref.Text = strings.TrimSpace(args[0])
			}
			return runResolve(cmd, backend, ref, allMatchesFlag)
		},
	}

	cmd.Flags().Int64Var(&jobcodeIDFlag, "jobcode-id", 0, "Exact jobcode id")
	cmd.Flags().BoolVar(&allMatchesFlag, "all-matches", false, "Expand every match instead of reporting ambiguity")

	return cmd
}

// runResolve executes the resolve command.
func runResolve(cmd *cobra.Command, backend shiftmcp.Backend, ref jobcode.Reference, allMatches bool) error {
	printer := newPrinter(cmd)
	if ref.IsZero() {
		return fail(printer, errNoReference)
	}

	be, release, err := backendFor(cmd.Context(), backend, cmd.ErrOrStderr())
	if err != nil {
		return fail(printer, err)
	}
	defer release()

	policy := jobcode.RequireSingle
	if allMatches {
		policy = jobcode.IncludeAll
	}
	res, _, err := be.Resolve(cmd.Context(), ref, policy)
	if err != nil {
		return fail(printer, err)
	}

	if printer.IsJSON() {
		return printer.WriteJSON(res)
	}

	printer.KeyValue("Project", ref.String())
	printer.KeyValue("Status", res.Kind.String())
	switch res.Kind {
	case jobcode.NotFound:
		printer.Println("No job code matches this project.")
	case jobcode.Ambiguous:
		printer.Section("Candidates")
		for i, jc := range res.Matches {
			printer.Print("  %d  %s\n", jc.ID, res.Paths[i])
		}
		printer.Stderr("\nRetry with --jobcode-id or --all-matches.\n")
	case jobcode.Matched:
		printer.Section("Matched")
		for i, jc := range res.Matches {
			printer.Print("  %d  %s\n", jc.ID, res.Paths[i])
		}
		printer.Println()
		printer.KeyValue("Covers", fmt.Sprintf("%d job codes", len(res.IDs)))
	}
	return nil
}
