// Package config loads the checkout client and server configuration from TOML
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/algocheckout/checkout"
)

// Config is the main configuration for the checkout tools.
type Config struct {
	Network  NetworkConfig  `toml:"network"`
	API      APIConfig      `toml:"api"`
	Wallet   WalletConfig   `toml:"wallet"`
	Checkout CheckoutConfig `toml:"checkout"`
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

// NetworkConfig selects the ledger network and overrides node endpoints.
type NetworkConfig struct {
	// Default is the network used when no preference is stored.
	Default string `toml:"default"`

	// ConfirmationRounds is how many rounds to wait for a payment to confirm.
	ConfirmationRounds int `toml:"confirmation_rounds"`

	// Nodes replace or extend the built-in network entries, matched by id.
	Nodes []NodeConfig `toml:"nodes"`
}

// NodeConfig overrides one network entry. Empty fields keep the built-in value.
type NodeConfig struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Server string `toml:"server"`
	Port   string `toml:"port"`
	Token  string `toml:"token"`
}

// APIConfig locates the checkout API.
type APIConfig struct {
	// Endpoint is the id of the selected entry in Endpoints.
	Endpoint string `toml:"endpoint"`

	// Endpoints maps endpoint ids to base URLs.
	Endpoints map[string]string `toml:"endpoints"`

	// APIKey is sent as a bearer token.
	APIKey string `toml:"api_key"`

	// Timeout bounds each API request.
	Timeout Duration `toml:"timeout"`
}

// WalletConfig describes where the signing key comes from.
type WalletConfig struct {
	// MnemonicEnv names the environment variable holding the 25-word mnemonic.
	MnemonicEnv string `toml:"mnemonic_env"`

	// PersistSession restores the previous session without prompting.
	PersistSession bool `toml:"persist_session"`
}

// CheckoutConfig tunes checkout tracking and the development registry.
type CheckoutConfig struct {
	RefetchDelay  Duration `toml:"refetch_delay"`
	TickInterval  Duration `toml:"tick_interval"`
	DefaultTTL    Duration `toml:"default_ttl"`
	AssetDecimals int32    `toml:"asset_decimals"`
}

// ServerConfig contains listen addresses.
type ServerConfig struct {
	// ListenAddr serves the checkout view API.
	ListenAddr string `toml:"listen_addr"`

	// RegistryAddr serves the development checkout registry.
	RegistryAddr string `toml:"registry_addr"`
}

// StoreConfig contains local persistence configuration.
type StoreConfig struct {
	// Path is the LevelDB directory for preferences and registry records.
	Path string `toml:"path"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is "json" or "console".
	Format string `toml:"format"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultMnemonicEnv holds the wallet mnemonic unless configured otherwise.
const DefaultMnemonicEnv = "CHECKOUT_MNEMONIC"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Default:            string(checkout.DefaultNetwork),
			ConfirmationRounds: checkout.DefaultConfirmationRounds,
		},
		API: APIConfig{
			Endpoint: "local",
			Endpoints: map[string]string{
				"local": "http://localhost:8081",
			},
			Timeout: Duration(30 * time.Second),
		},
		Wallet: WalletConfig{
			MnemonicEnv: DefaultMnemonicEnv,
		},
		Checkout: CheckoutConfig{
			RefetchDelay:  Duration(checkout.DefaultRefetchDelay),
			TickInterval:  Duration(checkout.DefaultTickInterval),
			DefaultTTL:    Duration(30 * time.Minute),
			AssetDecimals: 6,
		},
		Server: ServerConfig{
			ListenAddr:   ":8080",
			RegistryAddr: ":8081",
		},
		Store: StoreConfig{
			Path: "data/checkout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "checkout",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults, then environment overrides apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFiles loads KEY=value files into the process environment without
// overriding variables that are already set. With no paths it reads ".env"
// and tolerates its absence.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvNetwork            = "CHECKOUT_NETWORK"
	EnvAPIEndpoint        = "CHECKOUT_API_ENDPOINT"
	EnvAPIURL             = "CHECKOUT_API_URL"
	EnvAPIKey             = "CHECKOUT_API_KEY"
	EnvConfirmationRounds = "CHECKOUT_CONFIRMATION_ROUNDS"
	EnvLogLevel           = "CHECKOUT_LOG_LEVEL"
	EnvStorePath          = "CHECKOUT_STORE_PATH"

	// EnvNodeTokenPrefix followed by the upper-case network id sets that node's API token.
	EnvNodeTokenPrefix = "ALGOD_TOKEN_"
	// EnvNodeServerPrefix followed by the upper-case network id sets that node's server.
	EnvNodeServerPrefix = "ALGOD_SERVER_"
)

// ApplyEnv overrides configuration from the process environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvNetwork); v != "" {
		c.Network.Default = v
	}
	if v := os.Getenv(EnvConfirmationRounds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfirmationRounds, err)
		}
		c.Network.ConfirmationRounds = n
	}
	if v := os.Getenv(EnvAPIEndpoint); v != "" {
		c.API.Endpoint = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		if c.API.Endpoints == nil {
			c.API.Endpoints = make(map[string]string)
		}
		c.API.Endpoints[c.API.Endpoint] = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}

	for _, id := range c.networkIDs() {
		suffix := strings.ToUpper(id)
		token, hasToken := os.LookupEnv(EnvNodeTokenPrefix + suffix)
		server, hasServer := os.LookupEnv(EnvNodeServerPrefix + suffix)
		if !hasToken && !hasServer {
			continue
		}
		node := c.node(id)
		if hasToken {
			node.Token = token
		}
		if hasServer {
			node.Server = server
		}
	}
	return nil
}

// networkIDs returns built-in and configured network ids.
func (c *Config) networkIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, n := range checkout.DefaultNetworks() {
		seen[string(n.ID)] = true
		ids = append(ids, string(n.ID))
	}
	for _, n := range c.Network.Nodes {
		if !seen[n.ID] {
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// node returns the override entry for id, adding one if needed.
func (c *Config) node(id string) *NodeConfig {
	for i := range c.Network.Nodes {
		if c.Network.Nodes[i].ID == id {
			return &c.Network.Nodes[i]
		}
	}
	c.Network.Nodes = append(c.Network.Nodes, NodeConfig{ID: id})
	return &c.Network.Nodes[len(c.Network.Nodes)-1]
}

// NetworkRegistry merges the node overrides into the built-in networks.
func (c *Config) NetworkRegistry() (*checkout.NetworkRegistry, error) {
	byID := make(map[checkout.NetworkID]checkout.NetworkConfig)
	for _, n := range checkout.DefaultNetworks() {
		byID[n.ID] = n
	}

	for _, o := range c.Network.Nodes {
		id := checkout.NetworkID(o.ID)
		n, ok := byID[id]
		if !ok {
			n = checkout.NetworkConfig{ID: id, Name: o.ID}
		}
		if o.Name != "" {
			n.Name = o.Name
		}
		if o.Server != "" {
			n.Server = o.Server
		}
		if o.Port != "" {
			n.Port = o.Port
		}
		if o.Token != "" {
			n.Token = o.Token
		}
		byID[id] = n
	}

	entries := make([]checkout.NetworkConfig, 0, len(byID))
	for _, n := range byID {
		entries = append(entries, n)
	}
	return checkout.NewNetworkRegistry(entries...)
}

// EndpointURL resolves an API endpoint id. An empty id selects API.Endpoint.
func (c *Config) EndpointURL(id string) (string, error) {
	if id == "" {
		id = c.API.Endpoint
	}
	url, ok := c.API.Endpoints[id]
	if !ok || url == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, id)
	}
	return url, nil
}

// Mnemonic returns the wallet mnemonic from the configured environment variable.
func (c *Config) Mnemonic() (string, error) {
	phrase := strings.TrimSpace(os.Getenv(c.Wallet.MnemonicEnv))
	if phrase == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingMnemonic, c.Wallet.MnemonicEnv)
	}
	return phrase, nil
}

// Validation errors.
var (
	ErrUnknownNetwork            = errors.New("network default is not a configured network")
	ErrInvalidConfirmationRounds = errors.New("confirmation_rounds must be positive")
	ErrInvalidNodeOverride       = errors.New("network nodes entries need an id")
	ErrUnknownEndpoint           = errors.New("api endpoint is not configured")
	ErrInvalidAPITimeout         = errors.New("api timeout must be positive")
	ErrEmptyMnemonicEnv          = errors.New("wallet mnemonic_env cannot be empty")
	ErrMissingMnemonic           = errors.New("wallet mnemonic is not set")
	ErrInvalidRefetchDelay       = errors.New("checkout refetch_delay cannot be negative")
	ErrInvalidTickInterval       = errors.New("checkout tick_interval must be positive")
	ErrInvalidDefaultTTL         = errors.New("checkout default_ttl must be positive")
	ErrInvalidAssetDecimals      = errors.New("checkout asset_decimals must be between 0 and 19")
	ErrEmptyListenAddr           = errors.New("server listen_addr cannot be empty")
	ErrEmptyRegistryAddr         = errors.New("server registry_addr cannot be empty")
	ErrEmptyStorePath            = errors.New("store path cannot be empty")
	ErrEmptyMetricsNamespace     = errors.New("metrics namespace cannot be empty when enabled")
	ErrInvalidLogLevel           = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat          = errors.New("log format must be 'json' or 'console'")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network config: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}
	if c.Wallet.MnemonicEnv == "" {
		return fmt.Errorf("wallet config: %w", ErrEmptyMnemonicEnv)
	}
	if err := c.Checkout.Validate(); err != nil {
		return fmt.Errorf("checkout config: %w", err)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server config: %w", ErrEmptyListenAddr)
	}
	if c.Server.RegistryAddr == "" {
		return fmt.Errorf("server config: %w", ErrEmptyRegistryAddr)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store config: %w", ErrEmptyStorePath)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics config: %w", ErrEmptyMetricsNamespace)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.ConfirmationRounds <= 0 {
		return ErrInvalidConfirmationRounds
	}
	for _, n := range c.Network.Nodes {
		if n.ID == "" {
			return ErrInvalidNodeOverride
		}
	}
	registry, err := c.NetworkRegistry()
	if err != nil {
		return err
	}
	if !registry.Has(checkout.NetworkID(c.Network.Default)) {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network.Default)
	}
	return nil
}

// Validate checks the API configuration for errors.
func (c *APIConfig) Validate() error {
	if url, ok := c.Endpoints[c.Endpoint]; !ok || url == "" {
		return fmt.Errorf("%w: %q", ErrUnknownEndpoint, c.Endpoint)
	}
	if c.Timeout <= 0 {
		return ErrInvalidAPITimeout
	}
	return nil
}

// Validate checks the checkout configuration for errors.
func (c *CheckoutConfig) Validate() error {
	if c.RefetchDelay < 0 {
		return ErrInvalidRefetchDelay
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.DefaultTTL <= 0 {
		return ErrInvalidDefaultTTL
	}
	if c.AssetDecimals < 0 || c.AssetDecimals > 19 {
		return ErrInvalidAssetDecimals
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Format {
	case "json", "console":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
