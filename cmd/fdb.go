package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/fdb"
)

var fdbCmd = &cobra.Command{
	Use:   "fdb",
	Short: "Show learned MAC addresses",
	Long: `List the forwarding table: the port each (vlan, switch, mac) was last seen on.

Examples:
  vlanswitch fdb
  vlanswitch fdb --vlan 10
  vlanswitch fdb --vlan 10 --switch 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := command.FDBListParams{VLAN: core.VLANID(fdbVLAN)}
		if cmd.Flags().Changed("switch") {
			sw := core.SwitchID(fdbSwitch)
			params.Switch = &sw
		}
		return runFDB(cmd.Context(), client(), cmd.OutOrStdout(), params)
	},
}

var (
	fdbVLAN   string
	fdbSwitch uint64
)

func init() {
	fdbCmd.Flags().StringVar(&fdbVLAN, "vlan", "", "only entries of this VLAN")
	fdbCmd.Flags().Uint64Var(&fdbSwitch, "switch", 0, "only entries of this switch")
}

func runFDB(ctx context.Context, c ClientInterface, out io.Writer, params command.FDBListParams) error {
	res, err := result("fdb_list")(c.FDBList(ctx, params))
	if err != nil {
		return err
	}
	var list struct {
		Entries []fdb.Entry `json:"entries"`
	}
	if err := decodeResult(res, &list); err != nil {
		return fmt.Errorf("invalid fdb_list result: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VLAN\tSWITCH\tMAC\tPORT")
	for _, e := range list.Entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.VLAN, e.Switch, e.MAC, e.Port)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d entries\n", len(list.Entries))
	return nil
}
