// Package store persists client preferences and registry records in LevelDB.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/algocheckout/checkout"
)

// Key prefixes for LevelDB storage.
var (
	keyPrefNetwork  = []byte("P:network")  // last selected network id
	keyPrefEndpoint = []byte("P:endpoint") // last selected checkout API endpoint
	prefixCheckout  = []byte("C:")         // C:<id> -> checkout record JSON
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store is closed")

// LevelDB wraps one database holding preferences and checkout records.
type LevelDB struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	path   string
	closed bool
}

var _ checkout.PreferenceStore = (*LevelDB)(nil)

// Open opens or creates the database at path.
func Open(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	return &LevelDB{db: db, path: path}, nil
}

// Path returns the database directory.
func (s *LevelDB) Path() string {
	return s.path
}

// Close releases the database.
func (s *LevelDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ============================================================================
// Preferences
// ============================================================================

// LastNetwork returns the remembered network id.
func (s *LevelDB) LastNetwork() (checkout.NetworkID, bool, error) {
	v, ok, err := s.getString(keyPrefNetwork)
	return checkout.NetworkID(v), ok, err
}

// SetLastNetwork remembers the selected network id.
func (s *LevelDB) SetLastNetwork(id checkout.NetworkID) error {
	return s.put(keyPrefNetwork, []byte(id))
}

// LastEndpoint returns the remembered checkout API endpoint.
func (s *LevelDB) LastEndpoint() (string, bool, error) {
	return s.getString(keyPrefEndpoint)
}

// SetLastEndpoint remembers the selected checkout API endpoint.
func (s *LevelDB) SetLastEndpoint(endpoint string) error {
	return s.put(keyPrefEndpoint, []byte(endpoint))
}

// ============================================================================
// Checkout records
// ============================================================================

// SaveCheckout writes a record, replacing any previous version.
func (s *LevelDB) SaveCheckout(co *checkout.Checkout) error {
	if co == nil || co.ID == "" {
		return fmt.Errorf("checkout id is required")
	}
	data, err := json.Marshal(co)
	if err != nil {
		return fmt.Errorf("encoding checkout %s: %w", co.ID, err)
	}
	return s.put(checkoutKey(co.ID), data)
}

// LoadCheckout reads a record.
func (s *LevelDB) LoadCheckout(id string) (*checkout.Checkout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := s.db.Get(checkoutKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("%w: checkout %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkout %s: %w", id, err)
	}

	var co checkout.Checkout
	if err := json.Unmarshal(data, &co); err != nil {
		return nil, fmt.Errorf("decoding checkout %s: %w", id, err)
	}
	return &co, nil
}

// ListCheckouts returns every stored record ordered by creation time.
func (s *LevelDB) ListCheckouts() ([]*checkout.Checkout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	iter := s.db.NewIterator(util.BytesPrefix(prefixCheckout), nil)
	defer iter.Release()

	var out []*checkout.Checkout
	for iter.Next() {
		var co checkout.Checkout
		if err := json.Unmarshal(iter.Value(), &co); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", iter.Key(), err)
		}
		out = append(out, &co)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating checkouts: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteCheckout removes a record. Deleting a missing record is not an error.
func (s *LevelDB) DeleteCheckout(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Delete(checkoutKey(id), nil); err != nil {
		return fmt.Errorf("deleting checkout %s: %w", id, err)
	}
	return nil
}

func (s *LevelDB) getString(key []byte) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *LevelDB) put(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func checkoutKey(id string) []byte {
	key := make([]byte, 0, len(prefixCheckout)+len(id))
	key = append(key, prefixCheckout...)
	return append(key, id...)
}
