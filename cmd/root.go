// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/vlanswitch/internal/command"
)

var (
	// Global flags
	configFile  string
	socketPath  string
	callTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vlanswitch",
	Short: "vlanswitch - VLAN-aware learning switch controller",
	Long: `vlanswitch is the control engine of a VLAN-aware Ethernet learning switch.
It learns MAC addresses per VLAN and switch from packet-in events, installs
forwarding rules and forwards packets within the VLAN they arrived on.

Features:
  - Static VLAN topology from config or a topology file
  - Administrative VLAN bindings (memory or sqlite)
  - Switch events over the control socket or Kafka
  - Rule and emit dispatch to the log or a Kafka commands topic
  - Local control: CLI via Unix Domain Socket
  - Remote control: Kafka command subscription and a REST API`,
	Version:       command.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/vlanswitch/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/vlanswitch.sock",
		"daemon socket path")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 10*time.Second,
		"timeout for daemon calls")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(vlanCmd)
	rootCmd.AddCommand(fdbCmd)
	rootCmd.AddCommand(edgesCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
