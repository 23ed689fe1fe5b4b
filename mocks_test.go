package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

type mockWallet struct {
	mu sync.Mutex

	account      string
	restoreFunc  func(ctx context.Context) (string, error)
	connectFunc  func(ctx context.Context) (string, error)
	signFunc     func(ctx context.Context, account string, txns []types.Transaction) ([][]byte, error)
	onDisconnect []func()

	connectCalls    int
	signCalls       int
	disconnectCalls int
}

func newMockWallet() *mockWallet {
	return &mockWallet{account: crypto.GenerateAccount().Address.String()}
}

func (w *mockWallet) Restore(ctx context.Context) (string, error) {
	if w.restoreFunc != nil {
		return w.restoreFunc(ctx)
	}
	return "", nil
}

func (w *mockWallet) Connect(ctx context.Context) (string, error) {
	w.mu.Lock()
	w.connectCalls++
	w.mu.Unlock()
	if w.connectFunc != nil {
		return w.connectFunc(ctx)
	}
	return w.account, nil
}

func (w *mockWallet) SignTransactions(ctx context.Context, account string, txns []types.Transaction) ([][]byte, error) {
	w.mu.Lock()
	w.signCalls++
	w.mu.Unlock()
	if w.signFunc != nil {
		return w.signFunc(ctx, account, txns)
	}
	out := make([][]byte, len(txns))
	for i := range txns {
		out[i] = []byte{byte(i + 1)}
	}
	return out, nil
}

func (w *mockWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnectCalls++
	return nil
}

func (w *mockWallet) OnDisconnect(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDisconnect = append(w.onDisconnect, fn)
}

// revoke simulates the wallet ending the session on its own.
func (w *mockWallet) revoke() {
	w.mu.Lock()
	fns := append([]func(){}, w.onDisconnect...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (w *mockWallet) counts() (connect, sign, disconnect int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connectCalls, w.signCalls, w.disconnectCalls
}

type mockNode struct {
	mu sync.Mutex

	network      NetworkConfig
	paramsErr    error
	sendFunc     func(raw []byte) (string, error)
	lastRound    uint64
	confirmAfter int // pending lookups before inclusion; negative never confirms
	poolError    string
	waitErrs     int // StatusAfterRound failures before rounds advance

	sent         [][]byte
	pendingCalls int
	waitCalls    int
}

func newMockNode(cfg NetworkConfig) *mockNode {
	return &mockNode{network: cfg, lastRound: 1000, confirmAfter: 1}
}

func (n *mockNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	if n.paramsErr != nil {
		return types.SuggestedParams{}, n.paramsErr
	}
	return types.SuggestedParams{
		Fee:             0,
		MinFee:          1000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: types.Round(n.lastRound),
		LastRoundValid:  types.Round(n.lastRound + 1000),
	}, nil
}

func (n *mockNode) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	n.mu.Lock()
	n.sent = append(n.sent, raw)
	n.mu.Unlock()
	if n.sendFunc != nil {
		return n.sendFunc(raw)
	}
	return "TXID", nil
}

func (n *mockNode) Status(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastRound, nil
}

func (n *mockNode) StatusAfterRound(ctx context.Context, round uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waitCalls++
	if n.waitErrs > 0 {
		n.waitErrs--
		return 0, errors.New("node unavailable")
	}
	n.lastRound = round + 1
	return n.lastRound, nil
}

func (n *mockNode) PendingTransaction(ctx context.Context, txID string) (PendingTransaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pendingCalls++
	if n.poolError != "" {
		return PendingTransaction{PoolError: n.poolError}, nil
	}
	if n.confirmAfter >= 0 && n.pendingCalls > n.confirmAfter {
		return PendingTransaction{ConfirmedRound: n.lastRound}, nil
	}
	return PendingTransaction{}, nil
}

func (n *mockNode) calls() (pending, waits, sent int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pendingCalls, n.waitCalls, len(n.sent)
}

type mockBuilder struct {
	mu          sync.Mutex
	groupCalls  int
	directCalls int
	buildErr    error
}

func (b *mockBuilder) BuildPaymentGroup(c *Checkout, payer string, params types.SuggestedParams) (TransactionGroup, error) {
	b.mu.Lock()
	b.groupCalls++
	b.mu.Unlock()
	if b.buildErr != nil {
		return TransactionGroup{}, b.buildErr
	}
	gid := types.Digest{7}
	txA := types.Transaction{Type: types.AssetTransferTx}
	txB := types.Transaction{Type: types.ApplicationCallTx}
	txA.Group, txB.Group = gid, gid
	return TransactionGroup{CheckoutID: c.ID, Txns: []types.Transaction{txA, txB}, GroupID: gid}, nil
}

func (b *mockBuilder) BuildDirectTransfer(c *Checkout, payer string, params types.SuggestedParams) (types.Transaction, error) {
	b.mu.Lock()
	b.directCalls++
	b.mu.Unlock()
	if b.buildErr != nil {
		return types.Transaction{}, b.buildErr
	}
	return types.Transaction{Type: types.AssetTransferTx}, nil
}

type mockPrefs struct {
	mu       sync.Mutex
	network  NetworkID
	endpoint string
}

func (p *mockPrefs) LastNetwork() (NetworkID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.network, p.network != "", nil
}

func (p *mockPrefs) SetLastNetwork(id NetworkID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.network = id
	return nil
}

func (p *mockPrefs) LastEndpoint() (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint, p.endpoint != "", nil
}

func (p *mockPrefs) SetLastEndpoint(endpoint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = endpoint
	return nil
}

type mockSource struct {
	mu       sync.Mutex
	checkout *Checkout
	err      error
	calls    int
}

func (s *mockSource) GetCheckout(ctx context.Context, id string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.checkout.Clone(), nil
}

func (s *mockSource) set(fn func(c *Checkout)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.checkout)
}

func (s *mockSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mockPayer struct {
	mu      sync.Mutex
	txID    string
	err     error
	calls   int
	payFunc func(ctx context.Context, c *Checkout) (string, error)
}

func (p *mockPayer) Pay(ctx context.Context, c *Checkout) (string, error) {
	p.mu.Lock()
	p.calls++
	fn := p.payFunc
	txID, err := p.txID, p.err
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, c)
	}
	return txID, err
}
