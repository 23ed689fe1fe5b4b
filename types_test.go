package checkout

import (
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCheckout(t *testing.T) *Checkout {
	t.Helper()
	programID := uint64(754674671)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Checkout{
		ID:              "chk_test",
		ProgramID:       &programID,
		MerchantAddress: crypto.GenerateAccount().Address.String(),
		MerchantName:    "Corner Cafe",
		Amount:          1000000,
		AssetID:         10458941,
		Note:            "order 42",
		Status:          StatusPending,
		CreatedAt:       created,
		ExpiresAt:       created.Add(15 * time.Minute),
	}
}

func TestCheckoutValidate(t *testing.T) {
	co := testCheckout(t)
	require.NoError(t, co.Validate())

	bad := co.Clone()
	bad.Amount = 0
	assert.Error(t, bad.Validate())

	bad = co.Clone()
	bad.MerchantAddress = "not-an-address"
	assert.Error(t, bad.Validate())

	bad = co.Clone()
	bad.Status = "refunded"
	assert.Error(t, bad.Validate())

	bad = co.Clone()
	bad.ExpiresAt = bad.CreatedAt
	assert.Error(t, bad.Validate())

	bad = co.Clone()
	bad.Method = "wire"
	assert.Error(t, bad.Validate())

	var nilCheckout *Checkout
	assert.Error(t, nilCheckout.Validate())
}

func TestCheckoutSettlementMethod(t *testing.T) {
	co := testCheckout(t)
	assert.Equal(t, MethodContract, co.SettlementMethod())

	co.ProgramID = nil
	assert.Equal(t, MethodDirect, co.SettlementMethod())

	co.Method = MethodContract
	assert.Equal(t, MethodContract, co.SettlementMethod())
}

func TestCheckoutCloneIsDeep(t *testing.T) {
	co := testCheckout(t)
	cp := co.Clone()
	*cp.ProgramID = 1

	assert.Equal(t, uint64(754674671), *co.ProgramID)
}

func TestTransactionGroupValidate(t *testing.T) {
	gid := types.Digest{1, 2, 3}
	txA := types.Transaction{Type: types.AssetTransferTx}
	txB := types.Transaction{Type: types.ApplicationCallTx}
	txA.Group, txB.Group = gid, gid

	group := TransactionGroup{CheckoutID: "chk_1", Txns: []types.Transaction{txA, txB}, GroupID: gid}
	require.NoError(t, group.Validate())

	assert.Error(t, TransactionGroup{Txns: []types.Transaction{txA}, GroupID: gid}.Validate())
	assert.Error(t, TransactionGroup{Txns: []types.Transaction{txA, txB}}.Validate())

	txB.Group = types.Digest{9}
	assert.Error(t, TransactionGroup{Txns: []types.Transaction{txA, txB}, GroupID: gid}.Validate())
}
