package main

import (
	"github.com/spf13/cobra"

	checkoutmcp "github.com/algocheckout/checkout/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve checkout tools over MCP on stdio",
	Long: `Serve the checkout tools to an MCP client over stdio: checkout
status, payment, wallet status and network switching.

Logs go to stderr so stdout carries only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	server := checkoutmcp.NewServer(a.client, a.api,
		checkoutmcp.WithLogger(a.logger),
		checkoutmcp.WithAssetDecimals(cfg.Checkout.AssetDecimals),
		checkoutmcp.WithVersion(Version),
	)
	return server.Run(cmd.Context())
}
