package prefs

import (
	"context"
	"errors"
	"sync"
)

// memStore is an in-memory storage.Store with failure injection, shared by
// the gateway and manager tests.
type memStore struct {
	mu    sync.Mutex
	data  map[string]map[string]struct{}
	loads int

	failLoads  bool
	failWrites bool

	// clearGate, when set, holds ClearMuted open until the gate closes;
	// clearEntered signals that a clear has reached the store.
	clearGate    chan struct{}
	clearEntered chan struct{}
}

var errStoreDown = errors.New("store unavailable")

func newMemStore() *memStore {
	return &memStore{data: map[string]map[string]struct{}{}}
}

func (s *memStore) LoadMuted(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.failLoads {
		return nil, errStoreDown
	}
	out := map[string]struct{}{}
	for ch := range s.data[userID] {
		out[ch] = struct{}{}
	}
	return out, nil
}

func (s *memStore) AddMuted(ctx context.Context, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errStoreDown
	}
	set := s.data[userID]
	if set == nil {
		set = map[string]struct{}{}
		s.data[userID] = set
	}
	set[channelID] = struct{}{}
	return nil
}

func (s *memStore) RemoveMuted(ctx context.Context, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errStoreDown
	}
	delete(s.data[userID], channelID)
	return nil
}

func (s *memStore) ClearMuted(ctx context.Context, userID string) error {
	s.mu.Lock()
	gate, entered := s.clearGate, s.clearEntered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errStoreDown
	}
	delete(s.data, userID)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *memStore) muted(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for ch := range s.data[userID] {
		out = append(out, ch)
	}
	return out
}

func (s *memStore) setClearGate(gate, entered chan struct{}) {
	s.mu.Lock()
	s.clearGate, s.clearEntered = gate, entered
	s.mu.Unlock()
}

func (s *memStore) setFailWrites(v bool) {
	s.mu.Lock()
	s.failWrites = v
	s.mu.Unlock()
}
