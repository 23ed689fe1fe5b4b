// Package mcp exposes checkout status and payment as MCP tools so an agent can
// inspect and pay a checkout on the user's behalf.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/algocheckout/checkout"
	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/mechanisms/algorand"
)

// Tool names
const (
	ToolCheckoutStatus = "checkout_status"
	ToolPayCheckout    = "pay_checkout"
	ToolWalletStatus   = "wallet_status"
	ToolSwitchNetwork  = "switch_network"
)

// ServerName identifies the server to MCP clients
const ServerName = "checkout"

// Server holds the payment client behind the MCP tools
type Server struct {
	client   *checkout.Client
	trackers *checkout.TrackerSet
	logger   logger.Logger
	decimals int32
	version  string
}

// ServerOption configures the server
type ServerOption func(*Server)

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.OrNoop(l)
	}
}

// WithAssetDecimals sets the decimals used to display amounts
func WithAssetDecimals(decimals int32) ServerOption {
	return func(s *Server) {
		s.decimals = decimals
	}
}

// WithVersion sets the implementation version reported to clients
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates the tool server. Checkouts are loaded from source.
func NewServer(client *checkout.Client, source checkout.CheckoutSource, opts ...ServerOption) *Server {
	s := &Server{
		client:   client,
		logger:   logger.NoopLogger{},
		decimals: algorand.DefaultAssetDecimals,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.trackers = checkout.NewTrackerSet(source, client, checkout.WithTrackerLogger(s.logger))
	return s
}

// MCPServer builds an SDK server with every tool registered.
func (s *Server) MCPServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    ServerName,
		Version: s.version,
	}, nil)

	checkoutIDSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"checkoutId": map[string]interface{}{"type": "string", "description": "The checkout id"},
		},
		"required": []string{"checkoutId"},
	}

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolCheckoutStatus,
		Description: "Show a checkout's status, amount and time left before it expires.",
		InputSchema: checkoutIDSchema,
	}, s.handleCheckoutStatus)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolPayCheckout,
		Description: "Pay a pending checkout from the connected wallet and wait for confirmation.",
		InputSchema: checkoutIDSchema,
	}, s.handlePayCheckout)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolWalletStatus,
		Description: "Show the connected wallet account and the active network.",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.handleWalletStatus)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolSwitchNetwork,
		Description: "Switch the active network. The wallet session ends and must be reconnected.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"network": map[string]interface{}{"type": "string", "description": "Network id such as testnet or mainnet"},
			},
			"required": []string{"network"},
		},
	}, s.handleSwitchNetwork)

	return server
}

// Run serves the tools over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer().Run(ctx, &mcpsdk.StdioTransport{})
}

// ============================================================================
// Tool results
// ============================================================================

// CheckoutStatus is returned by checkout_status and pay_checkout
type CheckoutStatus struct {
	CheckoutID   string          `json:"checkoutId"`
	Status       checkout.Status `json:"status"`
	Amount       string          `json:"amount"`
	AssetID      uint64          `json:"assetId"`
	MerchantName string          `json:"merchantName,omitempty"`
	Countdown    string          `json:"countdown,omitempty"`
	TxID         string          `json:"txId,omitempty"`
	LastError    string          `json:"lastError,omitempty"`
}

// WalletStatus is returned by wallet_status and switch_network
type WalletStatus struct {
	Connected bool               `json:"connected"`
	Account   string             `json:"account,omitempty"`
	Network   checkout.NetworkID `json:"network"`
	Networks  []string           `json:"networks"`
}

type checkoutArgs struct {
	CheckoutID string `json:"checkoutId"`
}

type networkArgs struct {
	Network string `json:"network"`
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleCheckoutStatus(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args checkoutArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	tracker, err := s.trackers.Get(ctx, args.CheckoutID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(s.status(tracker.Tick(ctx)))
}

func (s *Server) handlePayCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args checkoutArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	tracker, err := s.trackers.Get(ctx, args.CheckoutID)
	if err != nil {
		return errorResult(err), nil
	}

	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return errorResult(err), nil
		}
		if !s.client.IsConnected() {
			return errorResult(errors.New("wallet connection was cancelled")), nil
		}
	}

	txID, err := tracker.Pay(ctx)
	if err != nil {
		s.logger.Warn("tool payment failed", map[string]any{
			"checkoutId": args.CheckoutID,
			"code":       checkout.ErrorCode(err),
			"error":      err,
		})
		return errorResult(err), nil
	}

	s.logger.Info("tool payment confirmed", map[string]any{"checkoutId": args.CheckoutID, "txId": txID})
	return jsonResult(s.status(tracker.Snapshot()))
}

func (s *Server) handleWalletStatus(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return jsonResult(s.wallet())
}

func (s *Server) handleSwitchNetwork(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args networkArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Network == "" {
		return errorResult(errors.New("network is required")), nil
	}
	if err := s.client.SwitchNetwork(ctx, checkout.NetworkID(args.Network)); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(s.wallet())
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) status(snap checkout.Snapshot) CheckoutStatus {
	out := CheckoutStatus{
		CheckoutID:   snap.Checkout.ID,
		Status:       snap.Status,
		Amount:       algorand.FormatAmount(snap.Checkout.Amount, s.decimals),
		AssetID:      snap.Checkout.AssetID,
		MerchantName: snap.Checkout.MerchantName,
		Countdown:    snap.Countdown,
		TxID:         snap.TxID,
	}
	if snap.LastError != nil {
		out.LastError = snap.LastError.Error()
	}
	return out
}

func (s *Server) wallet() WalletStatus {
	out := WalletStatus{
		Connected: s.client.IsConnected(),
		Account:   s.client.Account(),
		Network:   s.client.Network().ID,
	}
	for _, n := range s.client.Networks() {
		out.Networks = append(out.Networks, string(n.ID))
	}
	return out
}

func decodeArgs(req *mcpsdk.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return errors.New("missing tool arguments")
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	if a, ok := v.(*checkoutArgs); ok && a.CheckoutID == "" {
		return errors.New("checkoutId is required")
	}
	return nil
}

func jsonResult(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, nil
}

func errorResult(err error) *mcpsdk.CallToolResult {
	text := err.Error()
	if code := checkout.ErrorCode(err); code != "" && !strings.HasPrefix(text, code+": ") {
		text = code + ": " + text
	}
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}
}
