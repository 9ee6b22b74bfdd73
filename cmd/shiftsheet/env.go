package main

import (
	"github.com/spf13/cobra"

	"github.com/gorewood/shiftsheet/internal/config"
)

// newEnvCmd creates the env command.
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables shiftsheet reads",
		Long: `List every environment variable shiftsheet reads, with defaults.

Values may also come from .env.local, .env or <config dir>/env; variables
already set in the environment win.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			if printer.IsJSON() {
				return printer.WriteJSON(map[string]any{
					"config_dir": config.Dir(),
					"usage":      config.Usage(),
				})
			}
			printer.KeyValue("Config directory", config.Dir())
			printer.Println()
			printer.Println(config.Usage())
			return nil
		},
	}
}
