package algorand

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algocheckout/checkout"
)

// GroupBuilder builds checkout payments for the checkout program.
type GroupBuilder struct {
	signature string
	selector  []byte
}

var _ checkout.GroupBuilder = (*GroupBuilder)(nil)

// NewGroupBuilder creates a builder targeting payCheckout.
func NewGroupBuilder() *GroupBuilder {
	return &GroupBuilder{
		signature: PayCheckoutSignature,
		selector:  MethodSelector(PayCheckoutSignature),
	}
}

// Selector returns the method selector placed first in the call arguments.
func (b *GroupBuilder) Selector() []byte {
	out := make([]byte, len(b.selector))
	copy(out, b.selector)
	return out
}

// ProgramAddress derives the account that holds a program's funds.
func ProgramAddress(programID uint64) string {
	return crypto.GetApplicationAddress(programID).String()
}

// BuildPaymentGroup builds the asset transfer into the program account and
// the payCheckout call, bound together by a shared group id.
func (b *GroupBuilder) BuildPaymentGroup(co *checkout.Checkout, payer string, params types.SuggestedParams) (checkout.TransactionGroup, error) {
	if co == nil {
		return checkout.TransactionGroup{}, buildError("checkout is required", nil)
	}
	if co.ProgramID == nil || *co.ProgramID == 0 {
		return checkout.TransactionGroup{}, checkout.NewPaymentError(checkout.ErrCodeBuild,
			fmt.Sprintf("checkout %s has no programId for contract settlement", co.ID),
			map[string]interface{}{"checkoutId": co.ID})
	}
	if err := checkParams(params); err != nil {
		return checkout.TransactionGroup{}, err
	}

	payerAddr, err := types.DecodeAddress(payer)
	if err != nil {
		return checkout.TransactionGroup{}, buildError(fmt.Sprintf("invalid payer address %q", payer), err)
	}
	merchant, err := types.DecodeAddress(co.MerchantAddress)
	if err != nil {
		return checkout.TransactionGroup{}, buildError("invalid merchant address", err)
	}

	args, err := b.encodeArgs(co)
	if err != nil {
		return checkout.TransactionGroup{}, buildError("failed to encode call arguments", err)
	}

	programID := *co.ProgramID
	transfer, err := transaction.MakeAssetTransferTxn(payer, ProgramAddress(programID), co.Amount, nil, params, "", co.AssetID)
	if err != nil {
		return checkout.TransactionGroup{}, buildError("failed to build asset transfer", err)
	}

	call := invocation(payerAddr, params)
	call.Fee = types.MicroAlgos(InvocationFeeMultiplier * params.MinFee)
	call.ApplicationID = types.AppIndex(programID)
	call.OnCompletion = types.NoOpOC
	call.ApplicationArgs = args
	call.Accounts = []types.Address{merchant}
	call.ForeignAssets = []types.AssetIndex{types.AssetIndex(co.AssetID)}

	gid, err := crypto.ComputeGroupID([]types.Transaction{transfer, call})
	if err != nil {
		return checkout.TransactionGroup{}, buildError("failed to compute group id", err)
	}
	transfer.Group = gid
	call.Group = gid

	return checkout.TransactionGroup{
		CheckoutID: co.ID,
		Txns:       []types.Transaction{transfer, call},
		GroupID:    gid,
	}, nil
}

// BuildDirectTransfer builds a single asset transfer to the merchant. The
// note carries the checkout id.
func (b *GroupBuilder) BuildDirectTransfer(co *checkout.Checkout, payer string, params types.SuggestedParams) (types.Transaction, error) {
	if co == nil {
		return types.Transaction{}, buildError("checkout is required", nil)
	}
	if err := checkParams(params); err != nil {
		return types.Transaction{}, err
	}
	if _, err := types.DecodeAddress(payer); err != nil {
		return types.Transaction{}, buildError(fmt.Sprintf("invalid payer address %q", payer), err)
	}

	note := []byte(DirectNotePrefix + co.ID)
	if len(note) > MaxNoteLength {
		return types.Transaction{}, buildError(fmt.Sprintf("note of %d bytes exceeds %d", len(note), MaxNoteLength), nil)
	}

	tx, err := transaction.MakeAssetTransferTxn(payer, co.MerchantAddress, co.Amount, note, params, "", co.AssetID)
	if err != nil {
		return types.Transaction{}, buildError("failed to build asset transfer", err)
	}
	return tx, nil
}

func (b *GroupBuilder) encodeArgs(co *checkout.Checkout) ([][]byte, error) {
	id, err := EncodeString(co.ID)
	if err != nil {
		return nil, err
	}
	merchant, err := EncodeAddress(co.MerchantAddress)
	if err != nil {
		return nil, err
	}
	name, err := EncodeString(co.MerchantName)
	if err != nil {
		return nil, err
	}
	note, err := EncodeString(co.Note)
	if err != nil {
		return nil, err
	}

	args := [][]byte{b.Selector(), id, merchant, name, EncodeUint64(co.Amount), note}

	total := 0
	for _, arg := range args {
		total += len(arg)
	}
	if total > MaxAppArgsTotalLength {
		return nil, checkout.NewPaymentError(checkout.ErrCodeEncoding,
			fmt.Sprintf("call arguments total %d bytes, limit is %d", total, MaxAppArgsTotalLength),
			map[string]interface{}{"length": total})
	}
	return args, nil
}

func invocation(sender types.Address, params types.SuggestedParams) types.Transaction {
	var tx types.Transaction
	tx.Type = types.ApplicationCallTx
	tx.Sender = sender
	tx.FirstValid = params.FirstRoundValid
	tx.LastValid = params.LastRoundValid
	tx.GenesisID = params.GenesisID
	copy(tx.GenesisHash[:], params.GenesisHash)
	return tx
}

func checkParams(params types.SuggestedParams) error {
	switch {
	case params.MinFee == 0:
		return buildError("suggested params carry no minimum fee", nil)
	case len(params.GenesisHash) != len(types.Digest{}):
		return buildError("suggested params carry no genesis hash", nil)
	case params.LastRoundValid <= params.FirstRoundValid:
		return buildError("suggested params carry an empty validity window", nil)
	}
	return nil
}

func buildError(message string, cause error) *checkout.PaymentError {
	if cause == nil {
		return checkout.NewPaymentError(checkout.ErrCodeBuild, message, nil)
	}
	return checkout.WrapPaymentError(checkout.ErrCodeBuild, message, cause)
}
