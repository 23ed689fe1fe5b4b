package checkout

import (
	"context"
	"sync"
)

// TrackerSet lazily loads one tracker per checkout id and reuses it, so every
// view of a checkout shares the same overlay and expiry state.
type TrackerSet struct {
	mu       sync.Mutex
	source   CheckoutSource
	payer    Payer
	opts     []TrackerOption
	trackers map[string]*Tracker
}

// NewTrackerSet creates a set whose trackers fetch from source and pay with payer.
func NewTrackerSet(source CheckoutSource, payer Payer, opts ...TrackerOption) *TrackerSet {
	return &TrackerSet{
		source:   source,
		payer:    payer,
		opts:     opts,
		trackers: make(map[string]*Tracker),
	}
}

// Get returns the tracker for id, loading the checkout on first use.
// The load runs without holding the set lock; when two callers race, the
// first tracker stored wins. Failed loads are not cached.
func (s *TrackerSet) Get(ctx context.Context, id string, extra ...TrackerOption) (*Tracker, error) {
	s.mu.Lock()
	t, ok := s.trackers[id]
	s.mu.Unlock()
	if ok {
		return t, nil
	}

	opts := append(append([]TrackerOption{}, s.opts...), extra...)
	loaded, err := LoadTracker(ctx, s.source, id, s.payer, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trackers[id]; ok {
		return t, nil
	}
	s.trackers[id] = loaded
	return loaded, nil
}

// Forget drops the tracker for id. Views call it when they close.
func (s *TrackerSet) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, id)
}

// Len returns the number of loaded trackers.
func (s *TrackerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}
