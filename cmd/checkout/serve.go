package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	checkoutgin "github.com/algocheckout/checkout/pkg/gin"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the checkout view API",
	Long: `Serve the checkout view API backed by the configured wallet.

The server exposes checkout views with their countdown, payment,
wallet connection and network switching over HTTP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	opts := []checkoutgin.Options{
		checkoutgin.WithLogger(a.logger),
		checkoutgin.WithAssetDecimals(cfg.Checkout.AssetDecimals),
		checkoutgin.WithTrackerOptions(a.trackerOptions()...),
	}
	if a.recorder != nil {
		opts = append(opts,
			checkoutgin.WithMetrics(a.recorder),
			checkoutgin.WithMetricsHandler(a.recorder.Handler()))
	}
	server := checkoutgin.NewServer(a.client, a.api, opts...)

	addr := cfg.Server.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	return listenAndServe(cmd.Context(), a, &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	})
}

// listenAndServe runs srv until ctx is cancelled, then shuts it down.
func listenAndServe(ctx context.Context, a *app, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", map[string]any{"addr": srv.Addr})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
