// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime statistics",
	Long: `Query the vlanswitch daemon for runtime statistics.

Shows: uptime, forwarding table size, connected switches and event bus
counters (published, processed, failed, dropped, queued).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context(), client(), cmd.OutOrStdout())
	},
}

func runStats(ctx context.Context, c ClientInterface, out io.Writer) error {
	res, err := result("daemon_stats")(c.DaemonStats(ctx))
	if err != nil {
		return err
	}
	return printJSON(out, res)
}
