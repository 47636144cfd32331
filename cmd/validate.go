// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/topology"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a topology file or the daemon config",
	Long: `Validate a VLAN topology without starting the daemon.

With -f, the given topology file is checked. Without it, the config file
(--config) is loaded and its inline and file topology are checked together.
Duplicate VLAN ids and ports assigned to two VLANs are rejected.

Examples:
  vlanswitch validate -f topology.yaml
  vlanswitch validate -c /etc/vlanswitch/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd.OutOrStdout(), validateTopologyFile, configFile); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateTopologyFile string

func init() {
	validateCmd.Flags().StringVarP(&validateTopologyFile, "file", "f", "",
		"topology file to validate")
}

func runValidate(out io.Writer, topologyFile, configPath string) error {
	var (
		defs []topology.VLANDef
		err  error
	)
	if topologyFile != "" {
		defs, err = config.LoadTopologyFile(topologyFile)
	} else {
		var cfg *config.GlobalConfig
		cfg, err = config.Load(configPath)
		if err == nil {
			defs, err = cfg.VLANDefs()
		}
	}
	if err != nil {
		return err
	}

	table, err := topology.New(defs)
	if err != nil {
		return err
	}
	edges := topology.NewEdgeRegistry(table)

	fmt.Fprintf(out, "VALID: %d vlan(s), %d edge port(s)\n", table.Len(), edges.Len())
	for _, def := range table.Defs() {
		fmt.Fprintf(out, "  vlan %s: %d member(s)\n", def.ID, len(def.Members))
	}
	return nil
}
