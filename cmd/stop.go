// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/daemon"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the vlanswitch daemon",
	Long: `Stop the vlanswitch daemon gracefully.

The shutdown request is sent over the Unix Domain Socket. The daemon stops
its inbound transports, drains queued switch events, flushes dispatch sinks
and exits. If the socket cannot be reached, SIGTERM is sent to the PID in
the PID file instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd.Context(), client(), cmd.OutOrStdout(), stopFallback)
	},
}

var (
	stopPIDFile string
	stopWait    time.Duration
)

func init() {
	stopCmd.Flags().StringVarP(&stopPIDFile, "pidfile", "p", "",
		"PID file path (default: control.pid_file from config)")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 10*time.Second,
		"how long to wait for the daemon to exit when signalling it")
}

// runStop asks the daemon to shut down and falls back to fallback when the
// daemon cannot be reached.
func runStop(ctx context.Context, c ClientInterface, out io.Writer, fallback func() error) error {
	_, err := result("daemon_shutdown")(c.Shutdown(ctx))
	if err == nil {
		fmt.Fprintln(out, "✓ Shutdown requested")
		return nil
	}
	if fallback == nil {
		return err
	}

	fmt.Fprintf(out, "control socket unavailable (%v), signalling daemon\n", err)
	if err := fallback(); err != nil {
		if errors.Is(err, core.ErrDaemonNotRunning) {
			return fmt.Errorf("daemon is not running")
		}
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(out, "✓ Daemon stopped")
	return nil
}

// stopFallback signals the PID recorded in the PID file.
func stopFallback() error {
	path := stopPIDFile
	if path == "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("no --pidfile given and config unreadable: %w", err)
		}
		path = cfg.Control.PIDFile
	}
	return daemon.StopDaemon(path, socketPath, stopWait)
}
