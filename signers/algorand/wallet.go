package algorand

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algocheckout/checkout"
)

// SignTransactionsFunc defines the callback used to sign a transaction group.
type SignTransactionsFunc func(ctx context.Context, txns []types.Transaction) ([][]byte, error)

// PromptFunc stands in for the interactive connect step. Returning
// checkout.ErrConnectionCancelled reports a user abort.
type PromptFunc func(ctx context.Context, account string) error

// ApproveFunc stands in for the user reviewing a signing request.
type ApproveFunc func(ctx context.Context, txns []types.Transaction) (bool, error)

// Wallet implements checkout.Wallet for a single account using a signing callback.
type Wallet struct {
	address string
	sign    SignTransactionsFunc
	prompt  PromptFunc
	approve ApproveFunc

	mu        sync.Mutex
	connected bool
	persisted bool
	listeners []func()
}

var _ checkout.Wallet = (*Wallet)(nil)

// WalletOption configures a wallet
type WalletOption func(*Wallet)

// WithPrompt sets the connect prompt
func WithPrompt(fn PromptFunc) WalletOption {
	return func(w *Wallet) {
		w.prompt = fn
	}
}

// WithApproval sets the signing review step
func WithApproval(fn ApproveFunc) WalletOption {
	return func(w *Wallet) {
		w.approve = fn
	}
}

// WithPersistedSession makes Restore succeed without a prompt, as if a
// previous session had been saved.
func WithPersistedSession() WalletOption {
	return func(w *Wallet) {
		w.persisted = true
	}
}

// NewWallet creates a wallet from an address and signing callback.
func NewWallet(address string, signFunc SignTransactionsFunc, opts ...WalletOption) (*Wallet, error) {
	if _, err := types.DecodeAddress(address); err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}
	if signFunc == nil {
		return nil, fmt.Errorf("sign callback is required")
	}

	w := &Wallet{address: address, sign: signFunc}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// NewWalletFromPrivateKey creates a wallet that signs with an ed25519 key.
func NewWalletFromPrivateKey(sk ed25519.PrivateKey, opts ...WalletOption) (*Wallet, error) {
	account, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	signFunc := func(ctx context.Context, txns []types.Transaction) ([][]byte, error) {
		return signWithPrivateKey(account, txns)
	}
	return NewWallet(account.Address.String(), signFunc, opts...)
}

// NewWalletFromMnemonic creates a wallet from a 25-word account mnemonic.
//
// Example:
//
//	wallet, err := algorand.NewWalletFromMnemonic(os.Getenv("CHECKOUT_MNEMONIC"))
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewWalletFromMnemonic(phrase string, opts ...WalletOption) (*Wallet, error) {
	sk, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return NewWalletFromPrivateKey(sk, opts...)
}

// Address returns the wallet account.
func (w *Wallet) Address() string {
	return w.address
}

func (w *Wallet) Restore(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.connected || w.persisted {
		w.connected = true
		return w.address, nil
	}
	return "", nil
}

func (w *Wallet) Connect(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", checkout.ErrConnectionCancelled
	}
	if w.prompt != nil {
		if err := w.prompt(ctx, w.address); err != nil {
			return "", err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	return w.address, nil
}

// SignTransactions signs txns in order after the approval step.
func (w *Wallet) SignTransactions(ctx context.Context, account string, txns []types.Transaction) ([][]byte, error) {
	w.mu.Lock()
	connected := w.connected
	w.mu.Unlock()

	if !connected {
		return nil, checkout.ErrNotConnected
	}
	if account != w.address {
		return nil, fmt.Errorf("wallet holds %s, not %s", w.address, account)
	}
	for i, tx := range txns {
		if tx.Sender.String() != w.address {
			return nil, fmt.Errorf("transaction %d is sent by %s, not this wallet", i, tx.Sender.String())
		}
	}

	if w.approve != nil {
		ok, err := w.approve(ctx, txns)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, checkout.ErrSigningRejected
		}
	}

	return w.sign(ctx, txns)
}

// Disconnect ends the session and forgets any saved one.
func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	w.persisted = false
	return nil
}

func (w *Wallet) OnDisconnect(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Revoke ends the session from the wallet side and notifies listeners.
func (w *Wallet) Revoke() {
	w.mu.Lock()
	w.connected = false
	w.persisted = false
	listeners := append([]func(){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func signWithPrivateKey(account crypto.Account, txns []types.Transaction) ([][]byte, error) {
	signed := make([][]byte, 0, len(txns))
	for i, tx := range txns {
		_, stx, err := crypto.SignTransaction(account.PrivateKey, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction %d: %w", i, err)
		}
		signed = append(signed, stx)
	}
	return signed, nil
}
