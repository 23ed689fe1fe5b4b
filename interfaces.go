package checkout

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// NodeClient is the subset of the node API the payment client needs
type NodeClient interface {
	// SuggestedParams returns fee and validity parameters for a new transaction.
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)

	// SendRawTransaction broadcasts concatenated signed transactions and
	// returns the id of the first one.
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)

	// Status returns the last round the node has seen.
	Status(ctx context.Context) (uint64, error)

	// StatusAfterRound blocks until a round after round is observed and returns it.
	StatusAfterRound(ctx context.Context, round uint64) (uint64, error)

	// PendingTransaction reports the pool or ledger state of a transaction.
	PendingTransaction(ctx context.Context, txID string) (PendingTransaction, error)
}

// PendingTransaction is the node's view of a submitted transaction
type PendingTransaction struct {
	ConfirmedRound uint64
	PoolError      string
}

// NodeFactory opens a node client for a network
type NodeFactory func(NetworkConfig) (NodeClient, error)

// Wallet is an external signer holding the user's keys
//
// Connect may prompt the user. A user abort must be reported as
// ErrConnectionCancelled and a declined signature as ErrSigningRejected.
type Wallet interface {
	// Restore returns the account of a previous session without prompting,
	// or "" when there is none.
	Restore(ctx context.Context) (string, error)
	Connect(ctx context.Context) (string, error)
	// SignTransactions returns one signed encoding per input, in order.
	SignTransactions(ctx context.Context, account string, txns []types.Transaction) ([][]byte, error)
	Disconnect(ctx context.Context) error
	// OnDisconnect registers fn to be called when the wallet ends the session on its own.
	OnDisconnect(fn func())
}

// GroupBuilder turns a checkout into unsigned transactions
type GroupBuilder interface {
	BuildPaymentGroup(c *Checkout, payer string, params types.SuggestedParams) (TransactionGroup, error)
	BuildDirectTransfer(c *Checkout, payer string, params types.SuggestedParams) (types.Transaction, error)
}

// CheckoutSource fetches the authoritative checkout record
type CheckoutSource interface {
	GetCheckout(ctx context.Context, id string) (*Checkout, error)
}

// Payer pays a checkout
type Payer interface {
	Pay(ctx context.Context, c *Checkout) (string, error)
}

// PreferenceStore persists the user's network and API endpoint choice
type PreferenceStore interface {
	LastNetwork() (NetworkID, bool, error)
	SetLastNetwork(id NetworkID) error
	LastEndpoint() (string, bool, error)
	SetLastEndpoint(endpoint string) error
}
