package cmd

import (
	"github.com/spf13/cobra"
)

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List edge ports",
	Long:  `List the ports that appear in the static VLAN topology.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := result("edge_list")(client().EdgeList(cmd.Context()))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}
