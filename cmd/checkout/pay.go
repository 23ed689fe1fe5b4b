package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout"
)

var payCmd = &cobra.Command{
	Use:   "pay <checkout-id>",
	Short: "Pay a checkout",
	Long: `Connect the configured wallet and pay a checkout.

The payment is submitted on the active network and waits a few rounds
for confirmation. The checkout record is refreshed afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runPay,
}

func runPay(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := a.client.Connect(ctx); err != nil {
		return err
	}
	if !a.client.IsConnected() {
		return fmt.Errorf("wallet connection was cancelled")
	}

	tracker, err := checkout.LoadTracker(ctx, a.api, args[0], a.client, a.trackerOptions()...)
	if err != nil {
		return err
	}

	network := a.client.Network()
	fmt.Fprintf(out, "Paying %s from %s on %s\n", args[0], a.client.Account(), network.Name)

	txID, err := tracker.Pay(ctx)
	if err != nil {
		printSnapshot(out, tracker.Snapshot(), cfg.Checkout.AssetDecimals)
		return err
	}
	fmt.Fprintf(out, "Confirmed: %s\n", txID)
	printSnapshot(out, tracker.Snapshot(), cfg.Checkout.AssetDecimals)
	return nil
}
