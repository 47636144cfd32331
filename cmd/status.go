// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the vlanswitch daemon for its overall status.

Shows: version, uptime, VLAN and edge port counts, connected switches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), client(), cmd.OutOrStdout())
	},
}

func runStatus(ctx context.Context, c ClientInterface, out io.Writer) error {
	res, err := result("daemon_status")(c.DaemonStatus(ctx))
	if err != nil {
		return err
	}
	return printJSON(out, res)
}
