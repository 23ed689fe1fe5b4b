package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout"
	"github.com/algocheckout/checkout/mechanisms/algorand"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status <checkout-id>",
	Short: "Show a checkout",
	Long: `Show a checkout with its amount, status and countdown.

With --watch the countdown is refreshed every tick until the checkout
settles, fails or expires. An expired checkout is fetched once more
shortly after expiry in case a late payment landed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "refresh until the checkout settles or expires")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !statusWatch {
		tracker, err := checkout.LoadTracker(ctx, a.api, args[0], nil, a.trackerOptions()...)
		if err != nil {
			return err
		}
		printSnapshot(out, tracker.Tick(ctx), cfg.Checkout.AssetDecimals)
		return nil
	}

	snapshots := make(chan checkout.Snapshot, 1)
	opts := append(a.trackerOptions(), checkout.WithTickHandler(func(s checkout.Snapshot) {
		select {
		case snapshots <- s:
		default:
		}
	}))
	tracker, err := checkout.LoadTracker(ctx, a.api, args[0], nil, opts...)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go tracker.Run(watchCtx)

	// An expired view is kept open past the refetch so a late payment shows.
	grace := cfg.Checkout.RefetchDelay.Duration() + 2*cfg.Checkout.TickInterval.Duration()
	var expiredAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-snapshots:
			printSnapshot(out, s, cfg.Checkout.AssetDecimals)
			switch s.Status {
			case checkout.StatusNotified, checkout.StatusFailed:
				return nil
			case checkout.StatusExpired:
				if expiredAt.IsZero() {
					expiredAt = time.Now()
				} else if time.Since(expiredAt) >= grace {
					return nil
				}
			}
		}
	}
}

func printSnapshot(w io.Writer, s checkout.Snapshot, decimals int32) {
	co := s.Checkout
	line := fmt.Sprintf("%s  %s  %s (asset %d)",
		co.ID, s.Status, algorand.FormatAmount(co.Amount, decimals), co.AssetID)
	if co.MerchantName != "" {
		line += "  " + co.MerchantName
	}
	if s.Countdown != "" {
		line += "  " + s.Countdown
	}
	if s.TxID != "" {
		line += "  tx " + s.TxID
	}
	if s.LastError != nil {
		line += "  error: " + s.LastError.Error()
	}
	fmt.Fprintln(w, line)
}
