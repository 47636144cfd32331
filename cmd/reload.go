package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration",
	Long: `Ask the daemon to re-read its config file.

Log settings are applied immediately. Changes to the topology, dispatch,
bindings store or listen addresses are reported and need a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReload(cmd.Context(), client(), cmd.OutOrStdout())
	},
}

// runReload holds the command logic so it can be tested with a mock client.
func runReload(ctx context.Context, c ClientInterface, out io.Writer) error {
	if _, err := result("config_reload")(c.ConfigReload(ctx)); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "✓ Configuration reloaded successfully")
	return nil
}
