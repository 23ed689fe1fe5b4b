package main

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout/pkg/registry"
	"github.com/algocheckout/checkout/pkg/store"
)

var registryAddr string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Run a development checkout registry",
	Long: `Run a development checkout registry that creates checkouts and
serves them in the API record format. Records are kept in LevelDB under
the configured store path.`,
	Args: cobra.NoArgs,
	RunE: runRegistry,
}

func init() {
	registryCmd.Flags().StringVar(&registryAddr, "listen", "", "listen address (overrides config)")
}

func runRegistry(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := store.Open(filepath.Join(cfg.Store.Path, "registry"))
	if err != nil {
		return err
	}
	defer func() {
		if err := records.Close(); err != nil {
			a.logger.Warn("failed to close registry store", map[string]any{"error": err})
		}
	}()

	reg := registry.New(
		registry.WithStore(records),
		registry.WithDefaultTTL(cfg.Checkout.DefaultTTL.Duration()),
		registry.WithLogger(a.logger),
	)

	addr := cfg.Server.RegistryAddr
	if registryAddr != "" {
		addr = registryAddr
	}
	return listenAndServe(cmd.Context(), a, &http.Server{
		Addr:              addr,
		Handler:           registry.NewServer(reg),
		ReadHeaderTimeout: 10 * time.Second,
	})
}
