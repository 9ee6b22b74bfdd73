// Package mcp provides a Model Context Protocol server for shiftsheet.
// It exposes timesheet reports and job code lookups as MCP tools that any
// MCP-capable assistant can use.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/enrich"
	"github.com/gorewood/shiftsheet/internal/jobcode"
)

// Backend runs enrichment and loads job codes. *enrich.Pipeline implements it.
type Backend interface {
	Run(ctx context.Context, req enrich.Request) (*enrich.Result, error)
	Resolve(ctx context.Context, ref jobcode.Reference, policy jobcode.Policy) (jobcode.Resolution, *jobcode.Directory, error)
	Directory(ctx context.Context) (*jobcode.Directory, error)
}

// Deps are the server's collaborators.
type Deps struct {
	Backend Backend
	Logger  *zap.Logger
	// Now returns the current time; relative periods are computed from it.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewServer creates an MCP server with all shiftsheet tools registered.
func NewServer(version string, deps Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "shiftsheet",
		Version: version,
	}, nil)
	registerTools(server, deps.withDefaults())
	return server
}

// boolPtr returns a pointer to a bool value.
func boolPtr(b bool) *bool {
	return &b
}

// readOnlyAnnotations marks tools that only read from QuickBooks Time.
func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(true),
	}
}

// registerTools adds all shiftsheet tools to the server.
func registerTools(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "timesheet_report",
		Title: "Timesheet report",
		Description: "Build a shift report from QuickBooks Time for a date range, optionally limited to a project. " +
			"The project may be a jobcode id, a name or a partial name; a parent job includes all of its child tasks. " +
			"Returns per-entry rows plus totals by employee, day and job, rendered in the requested format.",
		Annotations: readOnlyAnnotations(),
	}, handleTimesheetReport(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_jobcodes",
		Title:       "Search job codes",
		Description: "Search QuickBooks Time job codes by name, short code or id. Returns full hierarchy paths and ids to use with timesheet_report.",
		Annotations: readOnlyAnnotations(),
	}, handleSearchJobcodes(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_project",
		Title:       "Resolve project",
		Description: "Show which job codes a project reference matches and which ids a report would cover, including descendants. Use it to disambiguate before running a report.",
		Annotations: readOnlyAnnotations(),
	}, handleResolveProject(deps))
}
