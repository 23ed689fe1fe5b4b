package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"

	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/metrics"
)

// DefaultConfirmationRounds is how many new rounds are polled before giving up.
const DefaultConfirmationRounds = 4

const (
	// roundWaitRetries bounds consecutive node errors while waiting for a round.
	roundWaitRetries        = 5
	roundWaitRetryBaseDelay = 250 * time.Millisecond
)

// Client connects a wallet, builds checkout payments and submits them to the
// active network.
type Client struct {
	mu sync.RWMutex

	registry    *NetworkRegistry
	network     NetworkConfig
	node        NodeClient
	nodeFactory NodeFactory
	session     *WalletSession

	// connectMu serializes Connect so concurrent callers share one prompt.
	connectMu sync.Mutex

	wallet  Wallet
	builder GroupBuilder
	guard   *AttemptGuard
	prefs   PreferenceStore
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time

	initialNetwork     NetworkID
	confirmationRounds int
	roundRetries       int
	roundRetryDelay    time.Duration

	beforePayHooks    []BeforePayHook
	afterPayHooks     []AfterPayHook
	onPayFailureHooks []OnPayFailureHook
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithNetworkRegistry replaces the built-in network table
func WithNetworkRegistry(r *NetworkRegistry) ClientOption {
	return func(c *Client) {
		c.registry = r
	}
}

// WithNetwork selects the initial network. A remembered preference wins over it.
func WithNetwork(id NetworkID) ClientOption {
	return func(c *Client) {
		c.initialNetwork = id
	}
}

// WithNodeFactory sets how node clients are opened
func WithNodeFactory(f NodeFactory) ClientOption {
	return func(c *Client) {
		c.nodeFactory = f
	}
}

// WithGroupBuilder sets the transaction builder
func WithGroupBuilder(b GroupBuilder) ClientOption {
	return func(c *Client) {
		c.builder = b
	}
}

// WithPreferenceStore persists network selection across runs
func WithPreferenceStore(s PreferenceStore) ClientOption {
	return func(c *Client) {
		c.prefs = s
	}
}

func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) ClientOption {
	return func(c *Client) {
		c.metrics = metrics.OrNoop(r)
	}
}

// WithConfirmationRounds overrides how many rounds to wait for inclusion
func WithConfirmationRounds(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.confirmationRounds = n
		}
	}
}

// WithAttemptGuard shares a guard between clients
func WithAttemptGuard(g *AttemptGuard) ClientOption {
	return func(c *Client) {
		c.guard = g
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// OnBeforePay registers a hook run before each admitted payment attempt
func OnBeforePay(h BeforePayHook) ClientOption {
	return func(c *Client) {
		c.beforePayHooks = append(c.beforePayHooks, h)
	}
}

// OnAfterPay registers a hook run after a confirmed payment
func OnAfterPay(h AfterPayHook) ClientOption {
	return func(c *Client) {
		c.afterPayHooks = append(c.afterPayHooks, h)
	}
}

// OnPayFailure registers a hook run when a payment attempt fails
func OnPayFailure(h OnPayFailureHook) ClientOption {
	return func(c *Client) {
		c.onPayFailureHooks = append(c.onPayFailureHooks, h)
	}
}

// NewClient creates a payment client for wallet. A node factory and group
// builder are required.
func NewClient(wallet Wallet, opts ...ClientOption) (*Client, error) {
	if wallet == nil {
		return nil, errors.New("wallet is required")
	}

	c := &Client{
		wallet:             wallet,
		logger:             logger.NoopLogger{},
		metrics:            metrics.NoopRecorder{},
		now:                time.Now,
		confirmationRounds: DefaultConfirmationRounds,
		roundRetries:       roundWaitRetries,
		roundRetryDelay:    roundWaitRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.nodeFactory == nil {
		return nil, errors.New("node factory is required")
	}
	if c.builder == nil {
		return nil, errors.New("group builder is required")
	}
	if c.registry == nil {
		c.registry = DefaultNetworkRegistry()
	}
	if c.guard == nil {
		c.guard = NewAttemptGuard(DefaultSettledTTL)
	}

	cfg, err := c.registry.Get(c.startupNetwork())
	if err != nil {
		return nil, err
	}
	node, err := c.nodeFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open node client for %s: %w", cfg.ID, err)
	}
	c.network = cfg
	c.node = node

	wallet.OnDisconnect(c.handleWalletDisconnect)

	return c, nil
}

// startupNetwork picks the remembered network, then the configured one, then the default.
func (c *Client) startupNetwork() NetworkID {
	if c.prefs != nil {
		id, ok, err := c.prefs.LastNetwork()
		if err != nil {
			c.logger.Warn("failed to read network preference", map[string]any{"error": err})
		}
		if ok && c.registry.Has(id) {
			return id
		}
	}
	if c.initialNetwork != "" {
		return c.initialNetwork
	}
	return DefaultNetwork
}

// Network returns the active network configuration
func (c *Client) Network() NetworkConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.network
}

// Networks returns every configured network
func (c *Client) Networks() []NetworkConfig {
	return c.registry.List()
}

// Session returns a copy of the active session, or nil.
func (c *Client) Session() *WalletSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// IsConnected reports whether a wallet session exists
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// Account returns the connected account address, or "".
func (c *Client) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Account
}

// Connect establishes a wallet session. It is a no-op when already connected,
// first tries silent restoration, and returns nil when the user aborts.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	account, err := c.wallet.Restore(ctx)
	if err != nil {
		c.logger.Debug("wallet session restore failed", map[string]any{"error": err})
		account = ""
	}

	if account == "" {
		account, err = c.wallet.Connect(ctx)
		if err != nil {
			if errors.Is(err, ErrConnectionCancelled) {
				c.logger.Info("wallet connection cancelled by user", nil)
				return nil
			}
			return WrapPaymentError(ErrCodeConnection, "wallet connection failed", err)
		}
	}
	if _, err := types.DecodeAddress(account); err != nil {
		return WrapPaymentError(ErrCodeConnection, fmt.Sprintf("wallet returned invalid account %q", account), err)
	}

	c.mu.Lock()
	c.session = &WalletSession{
		Account:     account,
		Network:     c.network.ID,
		ConnectedAt: c.now(),
	}
	network := c.network.ID
	c.mu.Unlock()

	c.logger.Info("wallet connected", map[string]any{"account": account, "network": network})
	c.metrics.IncCounter(metrics.EventWalletConnected, map[string]string{"network": string(network)})
	return nil
}

// Disconnect clears the session. Wallet errors are logged, never returned.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	network := c.network.ID
	c.mu.Unlock()

	if err := c.wallet.Disconnect(ctx); err != nil {
		c.logger.Warn("wallet disconnect failed", map[string]any{"error": err})
	}
	if had {
		c.logger.Info("wallet disconnected", map[string]any{"network": network})
		c.metrics.IncCounter(metrics.EventWalletDisconnected, map[string]string{"network": string(network)})
	}
}

func (c *Client) handleWalletDisconnect() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	network := c.network.ID
	c.mu.Unlock()

	if had {
		c.logger.Info("wallet ended the session", map[string]any{"network": network})
		c.metrics.IncCounter(metrics.EventWalletDisconnected, map[string]string{"network": string(network)})
	}
}

// SwitchNetwork makes id the active network and discards the wallet session.
func (c *Client) SwitchNetwork(ctx context.Context, id NetworkID) error {
	cfg, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	node, err := c.nodeFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to open node client for %s: %w", id, err)
	}

	c.mu.Lock()
	from := c.network.ID
	hadSession := c.session != nil
	c.session = nil
	c.network = cfg
	c.node = node
	c.mu.Unlock()

	if hadSession {
		if err := c.wallet.Disconnect(ctx); err != nil {
			c.logger.Warn("wallet disconnect failed", map[string]any{"error": err})
		}
	}
	if c.prefs != nil {
		if err := c.prefs.SetLastNetwork(id); err != nil {
			c.logger.Warn("failed to persist network preference", map[string]any{"error": err})
		}
	}

	c.logger.Info("network switched", map[string]any{"from": from, "to": id})
	c.metrics.IncCounter(metrics.EventNetworkSwitched, map[string]string{"network": string(id)})
	return nil
}

// snapshot reads the state one attempt runs against.
func (c *Client) snapshot() (*WalletSession, NodeClient, NetworkID) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, c.node, c.network.ID
	}
	s := *c.session
	return &s, c.node, c.network.ID
}

// PayInProgress reports whether a payment attempt for checkoutID is running.
func (c *Client) PayInProgress(checkoutID string) bool {
	return c.guard.InFlight(checkoutID)
}

// Submit signs and submits a prepared payment group and waits for confirmation.
func (c *Client) Submit(ctx context.Context, group TransactionGroup) (string, error) {
	if err := group.Validate(); err != nil {
		return "", WrapPaymentError(ErrCodeBuild, "invalid payment group", err)
	}

	status, txID, done := c.guard.CheckAndMark(group.CheckoutID)
	switch status {
	case AttemptSettled:
		return txID, nil
	case AttemptInFlight:
		return "", c.alreadyInProgress(group.CheckoutID)
	}

	session, node, network := c.snapshot()
	if session == nil {
		c.guard.Fail(group.CheckoutID, done)
		return "", ErrNotConnected
	}

	txID, err := c.submit(ctx, group.CheckoutID, session.Account, node, network, group.Txns)
	if err != nil {
		c.guard.Fail(group.CheckoutID, done)
		return "", err
	}
	c.guard.Complete(group.CheckoutID, txID, done)
	return txID, nil
}

// Pay builds, signs and submits the payment for co using its settlement
// method, and waits for confirmation. At most one attempt per checkout runs
// at a time; a concurrent call fails with ErrAlreadyInProgress.
func (c *Client) Pay(ctx context.Context, co *Checkout) (string, error) {
	if co == nil {
		return "", NewPaymentError(ErrCodeBuild, "checkout is required", nil)
	}

	status, txID, done := c.guard.CheckAndMark(co.ID)
	switch status {
	case AttemptSettled:
		c.logger.Info("checkout already paid by this client", map[string]any{"checkoutId": co.ID, "txId": txID})
		return txID, nil
	case AttemptInFlight:
		return "", c.alreadyInProgress(co.ID)
	}

	session, node, network := c.snapshot()
	if session == nil {
		c.guard.Fail(co.ID, done)
		return "", ErrNotConnected
	}

	pc := PayContext{
		Ctx:       ctx,
		Checkout:  co,
		Network:   network,
		Payer:     session.Account,
		AttemptID: newAttemptID(),
		Timestamp: c.now(),
	}

	txID, err := c.pay(pc, node)
	duration := c.now().Sub(pc.Timestamp)
	labels := map[string]string{"network": string(network)}
	c.metrics.ObserveLatency(metrics.OperationPay, duration, labels)

	if err != nil {
		c.guard.Fail(co.ID, done)
		c.metrics.IncCounter(metrics.EventPayFailed, labels)
		c.logger.Warn("payment attempt failed", map[string]any{
			"checkoutId": co.ID,
			"attemptId":  pc.AttemptID,
			"code":       ErrorCode(err),
			"error":      err,
		})
		for _, h := range c.onPayFailureHooks {
			if herr := h(PayFailureContext{PayContext: pc, Error: err, Duration: duration}); herr != nil {
				c.logger.Warn("pay failure hook failed", map[string]any{"error": herr})
			}
		}
		return "", err
	}

	c.guard.Complete(co.ID, txID, done)
	c.metrics.IncCounter(metrics.EventPayConfirmed, labels)
	c.logger.Info("payment confirmed", map[string]any{
		"checkoutId": co.ID,
		"attemptId":  pc.AttemptID,
		"txId":       txID,
		"duration":   duration.String(),
	})
	for _, h := range c.afterPayHooks {
		if herr := h(PayResultContext{PayContext: pc, TxID: txID, Duration: duration}); herr != nil {
			c.logger.Warn("after pay hook failed", map[string]any{"error": herr})
		}
	}
	return txID, nil
}

func (c *Client) pay(pc PayContext, node NodeClient) (string, error) {
	ctx, co := pc.Ctx, pc.Checkout

	for _, h := range c.beforePayHooks {
		result, err := h(pc)
		if err != nil {
			return "", WrapPaymentError(ErrCodePayAborted, "before pay hook failed", err)
		}
		if result != nil && result.Abort {
			return "", NewPaymentError(ErrCodePayAborted, result.Reason, nil)
		}
	}

	params, err := node.SuggestedParams(ctx)
	if err != nil {
		return "", WrapPaymentError(ErrCodeBuild, "failed to fetch suggested params", err)
	}

	var txns []types.Transaction
	switch co.SettlementMethod() {
	case MethodDirect:
		tx, err := c.builder.BuildDirectTransfer(co, pc.Payer, params)
		if err != nil {
			return "", err
		}
		txns = []types.Transaction{tx}
	default:
		group, err := c.builder.BuildPaymentGroup(co, pc.Payer, params)
		if err != nil {
			return "", err
		}
		txns = group.Txns
	}

	return c.submit(ctx, co.ID, pc.Payer, node, pc.Network, txns)
}

func (c *Client) submit(ctx context.Context, checkoutID, account string, node NodeClient, network NetworkID, txns []types.Transaction) (string, error) {
	signed, err := c.wallet.SignTransactions(ctx, account, txns)
	if err != nil {
		if errors.Is(err, ErrSigningRejected) {
			return "", err
		}
		return "", WrapPaymentError(ErrCodeConnection, "wallet failed to sign", err)
	}
	if len(signed) != len(txns) {
		return "", NewPaymentError(ErrCodeConnection,
			fmt.Sprintf("wallet returned %d signed transactions for %d", len(signed), len(txns)), nil)
	}

	var raw []byte
	for _, stx := range signed {
		raw = append(raw, stx...)
	}

	txID, err := node.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", &PaymentError{
			Code:    ErrCodeSubmission,
			Message: "node rejected transaction group",
			Details: map[string]interface{}{"detail": err.Error()},
			Err:     err,
		}
	}
	c.metrics.IncCounter(metrics.EventPaySubmitted, map[string]string{"network": string(network)})
	c.logger.Info("transaction group submitted", map[string]any{
		"checkoutId": checkoutID,
		"txId":       txID,
		"network":    network,
	})

	start := c.now()
	err = c.waitForConfirmation(ctx, node, txID)
	c.metrics.ObserveLatency(metrics.OperationConfirmation, c.now().Sub(start), map[string]string{"network": string(network)})
	if err != nil {
		return "", err
	}
	return txID, nil
}

// waitForConfirmation checks the transaction once per newly observed round,
// for at most confirmationRounds rounds.
func (c *Client) waitForConfirmation(ctx context.Context, node NodeClient, txID string) error {
	round, err := node.Status(ctx)
	if err != nil {
		return c.confirmationTimeout(txID, err)
	}

	for observed := 0; ; observed++ {
		pending, err := node.PendingTransaction(ctx, txID)
		if err != nil {
			c.logger.Debug("pending transaction lookup failed", map[string]any{"txId": txID, "error": err})
		} else {
			if pending.ConfirmedRound > 0 {
				c.logger.Debug("transaction confirmed", map[string]any{"txId": txID, "round": pending.ConfirmedRound})
				return nil
			}
			if pending.PoolError != "" {
				return &PaymentError{
					Code:    ErrCodeSubmission,
					Message: "transaction rejected from pool",
					Details: map[string]interface{}{"detail": pending.PoolError, "txId": txID},
				}
			}
		}

		if observed >= c.confirmationRounds {
			return c.confirmationTimeout(txID, nil)
		}

		round, err = c.nextRound(ctx, node, round)
		if err != nil {
			return c.confirmationTimeout(txID, err)
		}
	}
}

// nextRound blocks until the node reports a round after round. Node errors
// and stalled answers are retried with exponential backoff, up to
// roundRetries in a row.
func (c *Client) nextRound(ctx context.Context, node NodeClient, round uint64) (uint64, error) {
	for failures := 0; ; failures++ {
		next, err := node.StatusAfterRound(ctx, round)
		if err == nil && next > round {
			return next, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err == nil {
			err = fmt.Errorf("node reported round %d while waiting after %d", next, round)
		}
		if failures >= c.roundRetries {
			return 0, fmt.Errorf("waiting for round after %d: %w", round, err)
		}

		delay := c.roundRetryDelay * time.Duration(1<<failures)
		c.logger.Debug("waiting for next round failed", map[string]any{
			"round": round,
			"retry": failures + 1,
			"delay": delay.String(),
			"error": err,
		})
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) confirmationTimeout(txID string, cause error) error {
	details := map[string]interface{}{"txId": txID, "rounds": c.confirmationRounds}
	if cause != nil {
		details["detail"] = cause.Error()
	}
	return &PaymentError{
		Code:    ErrCodeConfirmationTimeout,
		Message: fmt.Sprintf("transaction %s not confirmed within %d rounds", txID, c.confirmationRounds),
		Details: details,
		Err:     cause,
	}
}

func (c *Client) alreadyInProgress(checkoutID string) error {
	c.metrics.IncCounter(metrics.EventPayDuplicate, map[string]string{"network": string(c.Network().ID)})
	return &PaymentError{
		Code:    ErrCodeAlreadyInProgress,
		Message: fmt.Sprintf("a payment for checkout %s is already in progress", checkoutID),
		Details: map[string]interface{}{"checkoutId": checkoutID},
	}
}

func newAttemptID() string {
	return "att_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
