package gin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algocheckout/checkout"
	checkouthttp "github.com/algocheckout/checkout/http"
	"github.com/algocheckout/checkout/mechanisms/algorand"
	"github.com/algocheckout/checkout/metrics"
	"github.com/algocheckout/checkout/pkg/registry"
	algosigner "github.com/algocheckout/checkout/signers/algorand"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubNode struct {
	mu        sync.Mutex
	round     uint64
	confirmed bool
	sent      int
}

func (n *stubNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return types.SuggestedParams{
		MinFee:          1000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
	}, nil
}

func (n *stubNode) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return "TXGROUP", nil
}

func (n *stubNode) Status(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.round, nil
}

func (n *stubNode) StatusAfterRound(ctx context.Context, round uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.round = round + 1
	return n.round, nil
}

func (n *stubNode) PendingTransaction(ctx context.Context, txID string) (checkout.PendingTransaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.confirmed {
		return checkout.PendingTransaction{ConfirmedRound: n.round}, nil
	}
	return checkout.PendingTransaction{}, nil
}

type fixture struct {
	engine   *gin.Engine
	node     *stubNode
	client   *checkout.Client
	registry *registry.Registry
}

func newFixture(t *testing.T, opts ...Options) *fixture {
	t.Helper()
	wallet, err := algosigner.NewWalletFromPrivateKey(crypto.GenerateAccount().PrivateKey)
	require.NoError(t, err)
	return newFixtureWithWallet(t, wallet, opts...)
}

func newFixtureWithWallet(t *testing.T, wallet checkout.Wallet, opts ...Options) *fixture {
	t.Helper()

	node := &stubNode{round: 100, confirmed: true}

	client, err := algorand.NewClient(algorand.ClientConfig{
		Wallet:      wallet,
		NodeFactory: func(cfg checkout.NetworkConfig) (checkout.NodeClient, error) { return node, nil },
	})
	require.NoError(t, err)

	reg := registry.New()
	server := NewServer(client, reg, opts...)
	return &fixture{engine: server.Handler(), node: node, client: client, registry: reg}
}

func (f *fixture) createCheckout(t *testing.T, ttl int64) *checkout.Checkout {
	t.Helper()
	programID := uint64(754674671)
	co, err := f.registry.Create(checkouthttp.CreateCheckoutRequest{
		ProgramID:        &programID,
		MerchantAddress:  crypto.GenerateAccount().Address.String(),
		MerchantName:     "Corner Cafe",
		Amount:           1500000,
		AssetID:          10458941,
		ExpiresInSeconds: ttl,
	})
	require.NoError(t, err)
	return co
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGetCheckoutView(t *testing.T) {
	f := newFixture(t)
	co := f.createCheckout(t, 600)

	rec := f.do(t, http.MethodGet, "/checkouts/"+co.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decode[CheckoutView](t, rec)
	assert.Equal(t, co.ID, view.Checkout.ID)
	assert.Equal(t, checkout.StatusPending, view.Status)
	assert.Equal(t, "1.500000", view.Amount)
	assert.True(t, view.Payable)
	assert.LessOrEqual(t, view.RemainingSeconds, int64(600))
	assert.Greater(t, view.RemainingSeconds, int64(590))
	assert.Regexp(t, `^\d\d:\d\d$`, view.Countdown)

	rec = f.do(t, http.MethodGet, "/checkouts/chk_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayRequiresWallet(t *testing.T) {
	f := newFixture(t)
	co := f.createCheckout(t, 600)

	rec := f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode[ErrorBody](t, rec)
	assert.Equal(t, checkout.ErrCodeNotConnected, body.Code)

	rec = f.do(t, http.MethodGet, "/checkouts/"+co.ID, "")
	view := decode[CheckoutView](t, rec)
	require.NotNil(t, view.LastError)
	assert.Equal(t, checkout.ErrCodeNotConnected, view.LastError.Code)
	assert.Equal(t, checkout.StatusPending, view.Status)
}

func TestConnectAndPay(t *testing.T) {
	f := newFixture(t)
	co := f.createCheckout(t, 600)

	rec := f.do(t, http.MethodPost, "/wallet/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decode[WalletView](t, rec)
	assert.True(t, wallet.Connected)
	assert.Equal(t, checkout.NetworkTestnet, wallet.Network)
	assert.NotEmpty(t, wallet.Account)

	rec = f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	paid := decode[PayResponse](t, rec)
	assert.Equal(t, "TXGROUP", paid.TxID)
	assert.Equal(t, checkout.StatusPaid, paid.View.Status)
	assert.Equal(t, checkout.StatusPending, paid.View.Checkout.Status, "the registry has not been notified yet")
	assert.False(t, paid.View.Payable)
	assert.Equal(t, 1, f.node.sent)

	rec = f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "a paid checkout is not payable again")
	assert.Equal(t, 1, f.node.sent)

	rec = f.do(t, http.MethodPost, "/wallet/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[WalletView](t, rec).Connected)
}

func TestPayConfirmationTimeout(t *testing.T) {
	f := newFixture(t)
	f.node.confirmed = false
	co := f.createCheckout(t, 600)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wallet/connect", "").Code)

	rec := f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, checkout.ErrCodeConfirmationTimeout, body.Code)
	assert.False(t, body.Retryable)

	view := decode[CheckoutView](t, f.do(t, http.MethodGet, "/checkouts/"+co.ID, ""))
	assert.Equal(t, checkout.StatusPending, view.Status)
}

func TestNetworks(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wallet/connect", "").Code)

	rec := f.do(t, http.MethodGet, "/networks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	networks := decode[NetworksView](t, rec)
	assert.Equal(t, checkout.NetworkTestnet, networks.Active)
	assert.Len(t, networks.Networks, 3)
	assert.NotContains(t, rec.Body.String(), strings.Repeat("a", 64), "node tokens are not exposed")

	rec = f.do(t, http.MethodPut, "/network", `{"network":"mainnet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, checkout.NetworkMainnet, decode[NetworksView](t, rec).Active)
	assert.False(t, f.client.IsConnected(), "switching networks drops the session")

	rec = f.do(t, http.MethodPut, "/network", `{"network":"devnet"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, checkout.ErrCodeUnknownNetwork, decode[ErrorBody](t, rec).Code)

	rec = f.do(t, http.MethodPut, "/network", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpiredCheckoutView(t *testing.T) {
	f := newFixture(t, WithTrackerOptions(checkout.WithRefetchDelay(0)))
	co := f.createCheckout(t, 1)

	time.Sleep(1100 * time.Millisecond)

	view := decode[CheckoutView](t, f.do(t, http.MethodGet, "/checkouts/"+co.ID, ""))
	assert.Equal(t, checkout.StatusExpired, view.Status)
	assert.Equal(t, "Expired", view.Countdown)
	assert.False(t, view.Payable)

	rec := f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	recorder, err := metrics.NewPrometheusRecorder("checkout", prometheus.NewRegistry())
	require.NoError(t, err)

	f := newFixture(t, WithMetrics(recorder), WithMetricsHandler(recorder.Handler()))
	recorder.IncCounter(metrics.EventPaySubmitted, map[string]string{"network": "testnet"})

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checkout_")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	co := f.createCheckout(t, 600)

	view := decode[HealthView](t, f.do(t, http.MethodGet, "/health", ""))
	assert.Equal(t, "ok", view.Status)
	assert.Equal(t, checkout.NetworkTestnet, view.Network)
	assert.False(t, view.Connected)
	assert.Equal(t, 0, view.Views)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/checkouts/"+co.ID, "").Code)
	view = decode[HealthView](t, f.do(t, http.MethodGet, "/health", ""))
	assert.Equal(t, 1, view.Views)
}

func TestCloseCheckoutView(t *testing.T) {
	f := newFixture(t)
	co := f.createCheckout(t, 600)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/checkouts/"+co.ID, "").Code)

	rec := f.do(t, http.MethodDelete, "/checkouts/"+co.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, decode[HealthView](t, f.do(t, http.MethodGet, "/health", "")).Views)

	// A closed view reloads the authoritative record
	_, err := f.registry.UpdateStatus(co.ID, checkouthttp.UpdateStatusRequest{Status: checkout.StatusNotified})
	require.NoError(t, err)
	view := decode[CheckoutView](t, f.do(t, http.MethodGet, "/checkouts/"+co.ID, ""))
	assert.Equal(t, checkout.StatusNotified, view.Status)
}

func TestCheckoutViewWhilePaying(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	wallet, err := algosigner.NewWalletFromPrivateKey(crypto.GenerateAccount().PrivateKey,
		algosigner.WithApproval(func(ctx context.Context, txns []types.Transaction) (bool, error) {
			close(started)
			<-release
			return true, nil
		}))
	require.NoError(t, err)

	f := newFixtureWithWallet(t, wallet)
	co := f.createCheckout(t, 600)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wallet/connect", "").Code)

	paid := make(chan int, 1)
	go func() {
		paid <- f.do(t, http.MethodPost, "/checkouts/"+co.ID+"/pay", "").Code
	}()

	<-started
	view := decode[CheckoutView](t, f.do(t, http.MethodGet, "/checkouts/"+co.ID, ""))
	assert.True(t, view.Paying)
	assert.False(t, view.Payable)
	assert.Equal(t, checkout.StatusPending, view.Status)

	close(release)
	assert.Equal(t, http.StatusOK, <-paid)

	view = decode[CheckoutView](t, f.do(t, http.MethodGet, "/checkouts/"+co.ID, ""))
	assert.False(t, view.Paying)
	assert.Equal(t, checkout.StatusPaid, view.Status)
}
