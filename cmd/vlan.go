package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/core"
)

// vlanCmd represents the vlan command group
var vlanCmd = &cobra.Command{
	Use:   "vlan",
	Short: "Manage VLAN bindings",
	Long: `Inspect the VLAN topology and manage administrative bindings.

Subcommands:
  add     - Bind a (port, switch) pair to a VLAN
  delete  - Remove every binding of a VLAN
  list    - List the static topology and the bindings
  lookup  - Show the VLAN a (port, switch) pair resolves to`,
}

var vlanAddCmd = &cobra.Command{
	Use:   "add <vlan>",
	Short: "Bind a (port, switch) pair to a VLAN",
	Long: `Record an administrative binding of (port, switch) to a VLAN.

Bindings are stored by the daemon's binding store. Forwarding decisions
keep using the static topology.

Examples:
  vlanswitch vlan add 10 --port 3 --switch 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := command.VLANAddParams{
			VLAN:   core.VLANID(args[0]),
			Port:   core.PortNo(vlanPort),
			Switch: core.SwitchID(vlanSwitch),
		}
		return runVLANAdd(cmd.Context(), client(), cmd.OutOrStdout(), params)
	},
}

var vlanDeleteCmd = &cobra.Command{
	Use:   "delete <vlan>",
	Short: "Remove every binding of a VLAN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVLANDelete(cmd.Context(), client(), cmd.OutOrStdout(), core.VLANID(args[0]))
	},
}

var vlanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the static topology and the bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := result("vlan_list")(client().VLANList(cmd.Context()))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var vlanLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Show the VLAN a (port, switch) pair resolves to",
	Long: `Resolve (port, switch) against the static topology. Pairs that are not
configured belong to the default VLAN "1".

Examples:
  vlanswitch vlan lookup --port 2 --switch 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVLANLookup(cmd.Context(), client(), cmd.OutOrStdout(),
			core.PortNo(vlanPort), core.SwitchID(vlanSwitch))
	},
}

var (
	vlanPort   uint32
	vlanSwitch uint64
)

func init() {
	for _, c := range []*cobra.Command{vlanAddCmd, vlanLookupCmd} {
		c.Flags().Uint32VarP(&vlanPort, "port", "P", 0, "port number (required)")
		c.Flags().Uint64VarP(&vlanSwitch, "switch", "S", 0, "switch (datapath) id (required)")
		_ = c.MarkFlagRequired("port")
		_ = c.MarkFlagRequired("switch")
	}

	vlanCmd.AddCommand(vlanAddCmd)
	vlanCmd.AddCommand(vlanDeleteCmd)
	vlanCmd.AddCommand(vlanListCmd)
	vlanCmd.AddCommand(vlanLookupCmd)
}

func runVLANAdd(ctx context.Context, c ClientInterface, out io.Writer, params command.VLANAddParams) error {
	if _, err := result("vlan_add")(c.VLANAdd(ctx, params)); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Port %d on switch %d bound to VLAN %s\n", params.Port, params.Switch, params.VLAN)
	return nil
}

func runVLANDelete(ctx context.Context, c ClientInterface, out io.Writer, vlan core.VLANID) error {
	if _, err := result("vlan_delete")(c.VLANDelete(ctx, vlan)); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ VLAN %s deleted\n", vlan)
	return nil
}

func runVLANLookup(ctx context.Context, c ClientInterface, out io.Writer, port core.PortNo, sw core.SwitchID) error {
	res, err := result("vlan_lookup")(c.VLANLookup(ctx, port, sw))
	if err != nil {
		return err
	}
	var lookup struct {
		VLAN    core.VLANID   `json:"vlan"`
		Default bool          `json:"default"`
		Ports   []core.PortNo `json:"ports"`
	}
	if err := decodeResult(res, &lookup); err != nil {
		return fmt.Errorf("invalid vlan_lookup result: %w", err)
	}

	fmt.Fprintf(out, "port %d on switch %d: vlan %s", port, sw, lookup.VLAN)
	if lookup.Default {
		fmt.Fprint(out, " (default)")
	}
	fmt.Fprintln(out)
	if !lookup.Default {
		fmt.Fprintf(out, "members on switch %d: %v\n", sw, lookup.Ports)
	}
	return nil
}
