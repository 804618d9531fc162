package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/setupdb/pkg/buildinfo"
)

// configCommand prints the configuration in effect after the config file and
// flags are applied. The output is a valid config file.
func (c *CLI) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.cfg.Encode(c.stdout)
		},
	}
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.stdout, "%s %s\n", appName, buildinfo.String())
			return err
		},
	}
}
