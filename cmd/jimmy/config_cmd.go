package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration as YAML.

Values come from, in increasing precedence: defaults, the config file,
JIMMY_* environment variables (e.g. JIMMY_BASE_URL) and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.cfg.ConfigPath != "" {
				fmt.Fprintf(out, "# config file: %s\n", a.cfg.ConfigPath)
			} else {
				fmt.Fprintln(out, "# config file: (none - using defaults)")
			}
			_, err = out.Write(data)
			return err
		},
	}
}
