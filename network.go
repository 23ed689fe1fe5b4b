package checkout

import (
	"fmt"
	"sort"
	"strings"
)

// NetworkID identifies a ledger network
type NetworkID string

const (
	NetworkTestnet  NetworkID = "testnet"
	NetworkMainnet  NetworkID = "mainnet"
	NetworkLocalnet NetworkID = "localnet"
)

// DefaultNetwork is used when nothing else has been selected.
const DefaultNetwork = NetworkTestnet

// NetworkConfig describes how to reach a network's node API
type NetworkConfig struct {
	ID     NetworkID `json:"id" toml:"id"`
	Name   string    `json:"name" toml:"name"`
	Server string    `json:"server" toml:"server"`
	Port   string    `json:"port" toml:"port"`
	Token  string    `json:"-" toml:"token"`
}

// Address joins server and port into the node base URL.
func (n NetworkConfig) Address() string {
	server := strings.TrimRight(n.Server, "/")
	if n.Port == "" {
		return server
	}
	return server + ":" + n.Port
}

// Validate checks that the entry is usable.
func (n NetworkConfig) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("network id is required")
	}
	if n.Server == "" {
		return fmt.Errorf("network %s: server is required", n.ID)
	}
	return nil
}

var defaultNetworks = []NetworkConfig{
	{
		ID:     NetworkTestnet,
		Name:   "TestNet",
		Server: "https://testnet-api.algonode.cloud",
		Port:   "443",
	},
	{
		ID:     NetworkMainnet,
		Name:   "MainNet",
		Server: "https://mainnet-api.algonode.cloud",
		Port:   "443",
	},
	{
		ID:     NetworkLocalnet,
		Name:   "LocalNet",
		Server: "http://localhost",
		Port:   "4001",
		Token:  strings.Repeat("a", 64),
	},
}

// NetworkRegistry maps network identifiers to node configuration.
// Entries are fixed once the registry is built.
type NetworkRegistry struct {
	networks map[NetworkID]NetworkConfig
}

// NewNetworkRegistry builds a registry from the given entries. Later entries
// with the same id replace earlier ones.
func NewNetworkRegistry(configs ...NetworkConfig) (*NetworkRegistry, error) {
	r := &NetworkRegistry{networks: make(map[NetworkID]NetworkConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		r.networks[cfg.ID] = cfg
	}
	return r, nil
}

// DefaultNetworkRegistry returns the public testnet and mainnet endpoints plus a local sandbox.
func DefaultNetworkRegistry() *NetworkRegistry {
	r, _ := NewNetworkRegistry(DefaultNetworks()...)
	return r
}

// DefaultNetworks returns a copy of the built-in entries.
func DefaultNetworks() []NetworkConfig {
	out := make([]NetworkConfig, len(defaultNetworks))
	copy(out, defaultNetworks)
	return out
}

// Get looks up a network.
func (r *NetworkRegistry) Get(id NetworkID) (NetworkConfig, error) {
	cfg, ok := r.networks[id]
	if !ok {
		return NetworkConfig{}, NewPaymentError(ErrCodeUnknownNetwork,
			fmt.Sprintf("network %q is not configured", id), nil)
	}
	return cfg, nil
}

// Has reports whether id is configured.
func (r *NetworkRegistry) Has(id NetworkID) bool {
	_, ok := r.networks[id]
	return ok
}

// List returns all entries ordered by id.
func (r *NetworkRegistry) List() []NetworkConfig {
	out := make([]NetworkConfig, 0, len(r.networks))
	for _, cfg := range r.networks {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
