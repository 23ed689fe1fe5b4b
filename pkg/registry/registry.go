// Package registry is a development checkout registry: it issues checkout
// records, serves them as the authoritative source and accepts the status
// notifications of the settlement watcher.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/algocheckout/checkout"
	checkouthttp "github.com/algocheckout/checkout/http"
	"github.com/algocheckout/checkout/logger"
	"github.com/algocheckout/checkout/mechanisms/algorand"
	"github.com/algocheckout/checkout/pkg/store"
)

// DefaultTTL is the lifetime of a checkout created without an explicit expiry.
const DefaultTTL = 30 * time.Minute

// MaxTTL caps requested lifetimes.
const MaxTTL = 24 * time.Hour

// IDPrefix starts every issued checkout id.
const IDPrefix = "chk_"

// ErrNotFound is returned for unknown checkout ids.
var ErrNotFound = store.ErrNotFound

// ErrInvalidRequest is returned when a create request cannot become a valid record.
var ErrInvalidRequest = errors.New("invalid checkout request")

// Store persists registry records
type Store interface {
	SaveCheckout(co *checkout.Checkout) error
	LoadCheckout(id string) (*checkout.Checkout, error)
	ListCheckouts() ([]*checkout.Checkout, error)
}

// Registry owns checkout records and their lifecycle.
type Registry struct {
	mu     sync.Mutex
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

// Option configures the registry
type Option func(*Registry)

// WithStore persists records in s instead of memory
func WithStore(s Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithDefaultTTL overrides DefaultTTL
func WithDefaultTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.OrNoop(l)
	}
}

// New creates a registry backed by memory unless WithStore is given.
func New(opts ...Option) *Registry {
	r := &Registry{
		store:  NewMemoryStore(),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create issues a new pending checkout.
func (r *Registry) Create(req checkouthttp.CreateCheckoutRequest) (*checkout.Checkout, error) {
	if !algorand.IsValidAddress(req.MerchantAddress) {
		return nil, fmt.Errorf("%w: merchantAddress %q is not a valid address", ErrInvalidRequest, req.MerchantAddress)
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.ExpiresInSeconds < 0 {
		return nil, fmt.Errorf("%w: expiresInSeconds cannot be negative", ErrInvalidRequest)
	}

	if req.ExpiresInSeconds > int64(MaxTTL/time.Second) {
		return nil, fmt.Errorf("%w: expiresInSeconds %d exceeds %s", ErrInvalidRequest, req.ExpiresInSeconds, MaxTTL)
	}

	ttl := r.ttl
	if req.ExpiresInSeconds > 0 {
		ttl = time.Duration(req.ExpiresInSeconds) * time.Second
	}
	if ttl > MaxTTL {
		return nil, fmt.Errorf("%w: lifetime %s exceeds %s", ErrInvalidRequest, ttl, MaxTTL)
	}

	now := r.now().UTC()
	co := &checkout.Checkout{
		ID:              newCheckoutID(),
		Method:          req.Method,
		MerchantAddress: req.MerchantAddress,
		MerchantName:    req.MerchantName,
		Amount:          req.Amount,
		AssetID:         req.AssetID,
		Note:            req.Note,
		Status:          checkout.StatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	if req.ProgramID != nil {
		id := *req.ProgramID
		co.ProgramID = &id
		co.ProgramAddress = algorand.ProgramAddress(id)
	}
	if co.Method == "" {
		co.Method = co.SettlementMethod()
	}
	if co.Method == checkout.MethodContract && co.ProgramID == nil {
		return nil, fmt.Errorf("%w: contract settlement requires programId", ErrInvalidRequest)
	}
	if err := co.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveCheckout(co); err != nil {
		return nil, err
	}

	r.logger.Info("checkout created", map[string]any{
		"checkoutId": co.ID,
		"method":     string(co.Method),
		"amount":     co.Amount,
		"assetId":    co.AssetID,
		"expiresAt":  co.ExpiresAt,
	})
	return co.Clone(), nil
}

// Get returns the authoritative record. A pending record past its expiry is
// moved to expired before it is returned.
func (r *Registry) Get(id string) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(id)
}

// GetCheckout implements checkout.CheckoutSource for in-process use.
func (r *Registry) GetCheckout(ctx context.Context, id string) (*checkout.Checkout, error) {
	return r.Get(id)
}

// List returns every record, applying expiry the same way Get does.
func (r *Registry) List() ([]*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.store.ListCheckouts()
	if err != nil {
		return nil, err
	}
	for _, co := range all {
		if err := r.expireLocked(co); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

// UpdateStatus applies a lifecycle change. Repeating the current status is
// accepted; moving backwards is rejected with checkout.ErrInvalidTransition.
func (r *Registry) UpdateStatus(id string, req checkouthttp.UpdateStatusRequest) (*checkout.Checkout, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	co, err := r.loadLocked(id)
	if err != nil {
		return nil, err
	}
	from := co.Status
	if err := co.Transition(req.Status); err != nil {
		return nil, err
	}
	if from == co.Status {
		return co, nil
	}
	if err := r.store.SaveCheckout(co); err != nil {
		return nil, err
	}

	r.logger.Info("checkout status updated", map[string]any{
		"checkoutId": id,
		"from":       string(from),
		"to":         string(co.Status),
		"txId":       req.TxID,
	})
	return co, nil
}

var _ checkout.CheckoutSource = (*Registry)(nil)

func (r *Registry) loadLocked(id string) (*checkout.Checkout, error) {
	co, err := r.store.LoadCheckout(id)
	if err != nil {
		return nil, err
	}
	if err := r.expireLocked(co); err != nil {
		return nil, err
	}
	return co, nil
}

func (r *Registry) expireLocked(co *checkout.Checkout) error {
	if co.Status != checkout.StatusPending || !co.Expired(r.now()) {
		return nil
	}
	co.Status = checkout.StatusExpired
	if err := r.store.SaveCheckout(co); err != nil {
		return err
	}
	r.logger.Info("checkout expired", map[string]any{"checkoutId": co.ID})
	return nil
}

func newCheckoutID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ============================================================================
// In-memory store
// ============================================================================

// MemoryStore keeps records in a map
type MemoryStore struct {
	mu        sync.RWMutex
	checkouts map[string]*checkout.Checkout
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*store.LevelDB)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkouts: make(map[string]*checkout.Checkout)}
}

func (m *MemoryStore) SaveCheckout(co *checkout.Checkout) error {
	if co == nil || co.ID == "" {
		return fmt.Errorf("checkout id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts[co.ID] = co.Clone()
	return nil
}

func (m *MemoryStore) LoadCheckout(id string) (*checkout.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	co, ok := m.checkouts[id]
	if !ok {
		return nil, fmt.Errorf("%w: checkout %s", store.ErrNotFound, id)
	}
	return co.Clone(), nil
}

func (m *MemoryStore) ListCheckouts() ([]*checkout.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*checkout.Checkout, 0, len(m.checkouts))
	for _, co := range m.checkouts {
		out = append(out, co.Clone())
	}
	return out, nil
}
