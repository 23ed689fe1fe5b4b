package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List networks",
	Long: `List the configured networks. The active network is marked with *.

The active network is the one last chosen with "networks use", or the
configured default.`,
	Args: cobra.NoArgs,
	RunE: runNetworks,
}

var networksUseCmd = &cobra.Command{
	Use:   "use <network-id>",
	Short: "Switch the active network",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworksUse,
}

func init() {
	networksCmd.AddCommand(networksUseCmd)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	active := checkout.NetworkID(cfg.Network.Default)
	if last, ok, err := a.prefs.LastNetwork(); err == nil && ok && a.registry.Has(last) {
		active = last
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tNODE")
	for _, n := range a.registry.List() {
		mark := ""
		if n.ID == active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, n.ID, n.Name, n.Address())
	}
	return w.Flush()
}

func runNetworksUse(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	network, err := a.registry.Get(checkout.NetworkID(args[0]))
	if err != nil {
		return err
	}
	if err := a.prefs.SetLastNetwork(network.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active network: %s\n", network.Name)
	return nil
}
