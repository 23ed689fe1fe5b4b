package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algocheckout/checkout"
	"github.com/algocheckout/checkout/config"
	checkouthttp "github.com/algocheckout/checkout/http"
	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/mechanisms/algorand"
	"github.com/algocheckout/checkout/metrics"
	"github.com/algocheckout/checkout/pkg/store"
	algosigner "github.com/algocheckout/checkout/signers/algorand"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *logger.ZapLogger
	prefs    *store.LevelDB
	recorder *metrics.PrometheusRecorder
	registry *checkout.NetworkRegistry
	api      *checkouthttp.CheckoutClient
	client   *checkout.Client
}

// newApp opens the preference store and API client. withWallet also builds
// the payment client from the configured mnemonic.
func newApp(cfg *config.Config, withWallet bool) (*app, error) {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log}

	a.prefs, err = store.Open(filepath.Join(cfg.Store.Path, "prefs"))
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.recorder, err = metrics.NewPrometheusRecorder(cfg.Metrics.Namespace, prometheus.NewRegistry())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
	}

	a.registry, err = cfg.NetworkRegistry()
	if err != nil {
		a.close()
		return nil, err
	}

	url, err := a.endpointURL()
	if err != nil {
		a.close()
		return nil, err
	}
	a.api = checkouthttp.NewCheckoutClient(&checkouthttp.CheckoutConfig{
		URL:     url,
		APIKey:  cfg.API.APIKey,
		Timeout: cfg.API.Timeout.Duration(),
		Logger:  log,
	})

	if withWallet {
		if err := a.openClient(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// endpointURL resolves the API endpoint: the --endpoint flag, then the
// remembered choice, then the configured default.
func (a *app) endpointURL() (string, error) {
	if endpoint != "" {
		url, err := a.cfg.EndpointURL(endpoint)
		if err != nil {
			return "", err
		}
		if err := a.prefs.SetLastEndpoint(endpoint); err != nil {
			a.logger.Warn("failed to remember endpoint", map[string]any{"error": err})
		}
		return url, nil
	}

	last, ok, err := a.prefs.LastEndpoint()
	if err != nil {
		a.logger.Warn("failed to read endpoint preference", map[string]any{"error": err})
	}
	if ok {
		if url, err := a.cfg.EndpointURL(last); err == nil {
			return url, nil
		}
	}
	return a.cfg.EndpointURL("")
}

func (a *app) openClient() error {
	phrase, err := a.cfg.Mnemonic()
	if err != nil {
		return err
	}

	var walletOpts []algosigner.WalletOption
	if a.cfg.Wallet.PersistSession {
		walletOpts = append(walletOpts, algosigner.WithPersistedSession())
	}
	wallet, err := algosigner.NewWalletFromMnemonic(phrase, walletOpts...)
	if err != nil {
		return fmt.Errorf("loading wallet: %w", err)
	}

	opts := []checkout.ClientOption{
		checkout.WithPreferenceStore(a.prefs),
		checkout.WithLogger(a.logger),
		checkout.WithConfirmationRounds(a.cfg.Network.ConfirmationRounds),
	}
	if a.recorder != nil {
		opts = append(opts, checkout.WithMetrics(a.recorder))
	}

	a.client, err = algorand.NewClient(algorand.ClientConfig{
		Wallet:   wallet,
		Network:  checkout.NetworkID(a.cfg.Network.Default),
		Registry: a.registry,
		Options:  opts,
	})
	if err != nil {
		return fmt.Errorf("creating payment client: %w", err)
	}
	return nil
}

// trackerOptions returns the configured tracker timing.
func (a *app) trackerOptions() []checkout.TrackerOption {
	opts := []checkout.TrackerOption{
		checkout.WithRefetchDelay(a.cfg.Checkout.RefetchDelay.Duration()),
		checkout.WithTickInterval(a.cfg.Checkout.TickInterval.Duration()),
		checkout.WithTrackerLogger(a.logger),
	}
	if a.recorder != nil && a.client != nil {
		opts = append(opts, checkout.WithTrackerMetrics(a.recorder, a.client.Network().ID))
	}
	return opts
}

func (a *app) close() {
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			a.logger.Warn("failed to close preference store", map[string]any{"error": err})
		}
	}
	_ = a.logger.Sync()
}

func newLogger(cfg config.LoggingConfig) (*logger.ZapLogger, error) {
	if cfg.Format == "console" {
		return logger.NewDevelopmentLogger(cfg.Level)
	}
	return logger.NewZapLogger(cfg.Level)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
