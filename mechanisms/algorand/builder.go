package algorand

import (
	"github.com/algocheckout/checkout"
)

// ClientConfig holds configuration for creating an Algorand checkout client
type ClientConfig struct {
	// Wallet signs payment groups (required)
	Wallet checkout.Wallet
	// Network to start on (optional - defaults to testnet or the remembered network)
	Network checkout.NetworkID
	// Registry of node endpoints (optional - defaults to the built-in networks)
	Registry *checkout.NetworkRegistry
	// NodeFactory overrides the algod client (optional)
	NodeFactory checkout.NodeFactory
	// Additional client options such as logging, metrics and hooks (optional)
	Options []checkout.ClientOption
}

// NewClient creates a checkout client wired to algod and the payCheckout
// group builder.
//
// Example:
//
//	wallet, _ := algosigner.NewWalletFromMnemonic(os.Getenv("CHECKOUT_MNEMONIC"))
//	client, err := algorand.NewClient(algorand.ClientConfig{
//	    Wallet:  wallet,
//	    Network: checkout.NetworkTestnet,
//	})
func NewClient(config ClientConfig) (*checkout.Client, error) {
	factory := config.NodeFactory
	if factory == nil {
		factory = NewAlgodNode
	}

	opts := []checkout.ClientOption{
		checkout.WithNodeFactory(factory),
		checkout.WithGroupBuilder(NewGroupBuilder()),
	}
	if config.Network != "" {
		opts = append(opts, checkout.WithNetwork(config.Network))
	}
	if config.Registry != nil {
		opts = append(opts, checkout.WithNetworkRegistry(config.Registry))
	}
	opts = append(opts, config.Options...)

	return checkout.NewClient(config.Wallet, opts...)
}
