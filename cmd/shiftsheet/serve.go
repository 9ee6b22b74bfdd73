package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	shiftmcp "github.com/gorewood/shiftsheet/internal/mcp"
)

// newServeCmd creates the serve command for running as an MCP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as MCP server (stdio transport)",
		Long: `Run shiftsheet as a Model Context Protocol (MCP) server over stdio.

This exposes timesheet reports and job code lookups as MCP tools that any
MCP-capable assistant can use. Logs go to stderr; stdout carries the protocol.

Configure in your assistant's MCP settings:
  {
    "mcpServers": {
      "shiftsheet": {
        "command": "shiftsheet",
        "args": ["serve"]
      }
    }
  }

Available tools: timesheet_report, search_jobcodes, resolve_project`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return fail(newPrinter(cmd), err)
			}
			defer a.close()

			server := shiftmcp.NewServer(buildVersion(), shiftmcp.Deps{
				Backend: a.backend,
				Logger:  a.logger,
			})
			a.logger.Info("mcp server starting", zap.String("version", buildVersion()))
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
