package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/go-playground/validator/v10"
)

// Status is the lifecycle state of a checkout
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusNotified Status = "notified"
	StatusExpired  Status = "expired"
	StatusFailed   Status = "failed"
)

// SettlementMethod selects how a checkout is paid
type SettlementMethod string

const (
	// MethodContract routes the payment through the checkout program as an atomic group.
	MethodContract SettlementMethod = "contract"
	// MethodDirect sends a single asset transfer straight to the merchant.
	MethodDirect SettlementMethod = "direct"
)

// Checkout is a merchant-issued payment request
type Checkout struct {
	ID              string           `json:"id" validate:"required,max=128"`
	Method          SettlementMethod `json:"method,omitempty" validate:"omitempty,oneof=contract direct"`
	ProgramID       *uint64          `json:"programId,omitempty"`
	ProgramAddress  string           `json:"programAddress,omitempty"`
	MerchantAddress string           `json:"merchantAddress" validate:"required,len=58"`
	MerchantName    string           `json:"merchantName,omitempty" validate:"max=256"`
	Amount          uint64           `json:"amount" validate:"gt=0"`
	AssetID         uint64           `json:"assetId"`
	Note            string           `json:"note,omitempty"`
	Status          Status           `json:"status" validate:"required,oneof=pending paid notified expired failed"`
	CreatedAt       time.Time        `json:"createdAt" validate:"required"`
	ExpiresAt       time.Time        `json:"expiresAt" validate:"required"`
}

var validate = validator.New()

// Validate checks the record invariants.
func (c *Checkout) Validate() error {
	if c == nil {
		return errors.New("checkout is nil")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid checkout: %w", err)
	}
	if !c.ExpiresAt.After(c.CreatedAt) {
		return fmt.Errorf("invalid checkout %s: expiresAt must be after createdAt", c.ID)
	}
	return nil
}

// SettlementMethod returns the explicit method, or infers it from ProgramID.
func (c *Checkout) SettlementMethod() SettlementMethod {
	if c.Method != "" {
		return c.Method
	}
	if c.ProgramID != nil {
		return MethodContract
	}
	return MethodDirect
}

// Clone returns a deep copy.
func (c *Checkout) Clone() *Checkout {
	if c == nil {
		return nil
	}
	out := *c
	if c.ProgramID != nil {
		id := *c.ProgramID
		out.ProgramID = &id
	}
	return &out
}

// TransactionGroup is an atomic set of unsigned transactions paying one checkout.
type TransactionGroup struct {
	CheckoutID string
	Txns       []types.Transaction
	GroupID    types.Digest
}

// PaymentGroupSize is the number of members in a contract payment group.
const PaymentGroupSize = 2

// Validate checks that the group is a complete payment group: two members
// sharing a non-zero group identifier.
func (g TransactionGroup) Validate() error {
	if len(g.Txns) != PaymentGroupSize {
		return fmt.Errorf("payment group must have %d transactions, got %d", PaymentGroupSize, len(g.Txns))
	}
	if g.GroupID == (types.Digest{}) {
		return errors.New("payment group id is empty")
	}
	for i, tx := range g.Txns {
		if tx.Group != g.GroupID {
			return fmt.Errorf("transaction %d does not carry the group id", i)
		}
	}
	return nil
}

// WalletSession is the active wallet connection
type WalletSession struct {
	Account     string    `json:"account"`
	Network     NetworkID `json:"network"`
	ConnectedAt time.Time `json:"connectedAt"`
}
