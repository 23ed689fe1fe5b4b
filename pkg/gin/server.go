// Package gin exposes the checkout view over HTTP: checkout status with its
// countdown, wallet connection, network selection and payment.
package gin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/algocheckout/checkout"
	checkouthttp "github.com/algocheckout/checkout/http"
	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/mechanisms/algorand"
	"github.com/algocheckout/checkout/metrics"
	"github.com/algocheckout/checkout/pkg/store"
)

// ServerOptions configures the view server.
type ServerOptions struct {
	Logger         logger.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	AssetDecimals  int32
	TrackerOptions []checkout.TrackerOption
}

// Options is a functional option for the view server.
type Options func(*ServerOptions)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Options {
	return func(o *ServerOptions) {
		o.Logger = l
	}
}

// WithMetrics records tracker events with r.
func WithMetrics(r metrics.Recorder) Options {
	return func(o *ServerOptions) {
		o.Metrics = r
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Options {
	return func(o *ServerOptions) {
		o.MetricsHandler = h
	}
}

// WithAssetDecimals sets the decimals used to display amounts.
func WithAssetDecimals(decimals int32) Options {
	return func(o *ServerOptions) {
		o.AssetDecimals = decimals
	}
}

// WithTrackerOptions passes extra options to every tracker the server creates.
func WithTrackerOptions(opts ...checkout.TrackerOption) Options {
	return func(o *ServerOptions) {
		o.TrackerOptions = append(o.TrackerOptions, opts...)
	}
}

// Server serves the checkout view for one payment client.
type Server struct {
	client   *checkout.Client
	options  ServerOptions
	logger   logger.Logger
	trackers *checkout.TrackerSet
}

// NewServer creates a view server. Checkouts are loaded from source on first view.
func NewServer(client *checkout.Client, source checkout.CheckoutSource, opts ...Options) *Server {
	options := ServerOptions{
		AssetDecimals: algorand.DefaultAssetDecimals,
	}
	for _, opt := range opts {
		opt(&options)
	}

	log := logger.OrNoop(options.Logger)
	trackerOpts := append([]checkout.TrackerOption{checkout.WithTrackerLogger(log)}, options.TrackerOptions...)

	return &Server{
		client:   client,
		options:  options,
		logger:   log,
		trackers: checkout.NewTrackerSet(source, client, trackerOpts...),
	}
}

// Handler returns a gin engine with all routes mounted.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}

// Register mounts the routes on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", s.health)
	r.GET("/checkouts/:id", s.getCheckout)
	r.DELETE("/checkouts/:id", s.closeCheckout)
	r.POST("/checkouts/:id/pay", s.payCheckout)
	r.GET("/wallet", s.getWallet)
	r.POST("/wallet/connect", s.connectWallet)
	r.POST("/wallet/disconnect", s.disconnectWallet)
	r.GET("/networks", s.getNetworks)
	r.PUT("/network", s.switchNetwork)
	if s.options.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(s.options.MetricsHandler))
	}
}

// ============================================================================
// Response bodies
// ============================================================================

// ErrorBody describes a failed operation
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

// CheckoutView is the rendered state of one checkout
type CheckoutView struct {
	Checkout         checkout.Checkout `json:"checkout"`
	Status           checkout.Status   `json:"status"`
	Amount           string            `json:"amount"`
	RemainingSeconds int64             `json:"remainingSeconds"`
	Countdown        string            `json:"countdown,omitempty"`
	Payable          bool              `json:"payable"`
	Paying           bool              `json:"paying"`
	TxID             string            `json:"txId,omitempty"`
	LastError        *ErrorBody        `json:"lastError,omitempty"`
}

// HealthView reports server state
type HealthView struct {
	Status    string             `json:"status"`
	Network   checkout.NetworkID `json:"network"`
	Connected bool               `json:"connected"`
	Views     int                `json:"views"`
}

// PayResponse is returned by a successful payment
type PayResponse struct {
	TxID string       `json:"txId"`
	View CheckoutView `json:"view"`
}

// WalletView describes the wallet session
type WalletView struct {
	Connected   bool               `json:"connected"`
	Account     string             `json:"account,omitempty"`
	Network     checkout.NetworkID `json:"network"`
	ConnectedAt *time.Time         `json:"connectedAt,omitempty"`
}

// NetworksView lists the configured networks
type NetworksView struct {
	Active   checkout.NetworkID       `json:"active"`
	Networks []checkout.NetworkConfig `json:"networks"`
}

// SwitchNetworkRequest is the body of PUT /network
type SwitchNetworkRequest struct {
	Network checkout.NetworkID `json:"network" binding:"required"`
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) getCheckout(c *gin.Context) {
	tracker, err := s.tracker(c, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view(tracker.Tick(c.Request.Context())))
}

// closeCheckout releases the view state of a checkout. The next GET reloads it.
func (s *Server) closeCheckout(c *gin.Context) {
	s.trackers.Forget(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthView{
		Status:    "ok",
		Network:   s.client.Network().ID,
		Connected: s.client.IsConnected(),
		Views:     s.trackers.Len(),
	})
}

func (s *Server) payCheckout(c *gin.Context) {
	tracker, err := s.tracker(c, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	txID, err := tracker.Pay(c.Request.Context())
	if err != nil {
		s.logger.Warn("payment failed", map[string]any{
			"checkoutId": c.Param("id"),
			"code":       checkout.ErrorCode(err),
			"error":      err,
		})
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PayResponse{TxID: txID, View: s.view(tracker.Snapshot())})
}

func (s *Server) getWallet(c *gin.Context) {
	c.JSON(http.StatusOK, s.walletView())
}

func (s *Server) connectWallet(c *gin.Context) {
	if err := s.client.Connect(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.walletView())
}

func (s *Server) disconnectWallet(c *gin.Context) {
	s.client.Disconnect(c.Request.Context())
	c.JSON(http.StatusOK, s.walletView())
}

func (s *Server) getNetworks(c *gin.Context) {
	c.JSON(http.StatusOK, NetworksView{
		Active:   s.client.Network().ID,
		Networks: s.client.Networks(),
	})
}

func (s *Server) switchNetwork(c *gin.Context) {
	var req SwitchNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return
	}
	if err := s.client.SwitchNetwork(c.Request.Context(), req.Network); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NetworksView{
		Active:   s.client.Network().ID,
		Networks: s.client.Networks(),
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) tracker(c *gin.Context, id string) (*checkout.Tracker, error) {
	return s.trackers.Get(c.Request.Context(), id,
		checkout.WithTrackerMetrics(s.options.Metrics, s.client.Network().ID))
}

func (s *Server) view(snap checkout.Snapshot) CheckoutView {
	v := CheckoutView{
		Checkout:         snap.Checkout,
		Status:           snap.Status,
		Amount:           algorand.FormatAmount(snap.Checkout.Amount, s.options.AssetDecimals),
		RemainingSeconds: int64((snap.Remaining + time.Second - 1) / time.Second),
		Countdown:        snap.Countdown,
		Paying:           s.client.PayInProgress(snap.Checkout.ID),
		TxID:             snap.TxID,
	}
	v.Payable = snap.Status == checkout.StatusPending && snap.Remaining > 0 && !v.Paying
	if snap.LastError != nil {
		body := errorBody(snap.LastError)
		v.LastError = &body
	}
	return v
}

func (s *Server) walletView() WalletView {
	v := WalletView{Network: s.client.Network().ID}
	if session := s.client.Session(); session != nil {
		v.Connected = true
		v.Account = session.Account
		v.Network = session.Network
		connectedAt := session.ConnectedAt
		v.ConnectedAt = &connectedAt
	}
	return v
}

func (s *Server) writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody(err))
}

func errorBody(err error) ErrorBody {
	return ErrorBody{
		Error:     err.Error(),
		Code:      checkout.ErrorCode(err),
		Retryable: checkout.Retryable(err),
	}
}

// statusFor maps payment errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, checkouthttp.ErrCheckoutNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, checkout.ErrNotPayable),
		errors.Is(err, checkout.ErrAlreadyInProgress),
		errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrUnknownNetwork):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrPayAborted):
		return http.StatusForbidden
	case errors.Is(err, checkout.ErrSigningRejected),
		errors.Is(err, checkout.ErrBuild),
		errors.Is(err, checkout.ErrEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, checkout.ErrConnection),
		errors.Is(err, checkout.ErrSubmission):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
