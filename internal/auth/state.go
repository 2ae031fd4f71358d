package auth

import (
	"sync"
	"time"
)

// StateTTL is how long an authorization attempt is considered fresh.
// Older records are logged as stale but still honored.
const StateTTL = 10 * time.Minute

// StateRecord holds the per-attempt PKCE bookkeeping persisted between the
// authorization redirect and the callback.
type StateRecord struct {
	Verifier  string
	CreatedAt time.Time
}

// StateStore persists authorization attempts keyed by the opaque state
// value. Take removes the record so each attempt is single-use.
type StateStore interface {
	Put(state string, rec StateRecord)
	Take(state string) (StateRecord, bool)
	// TakeLast consumes the most recently stored record regardless of its
	// state key. It exists for callbacks whose state key was never stored
	// under per-state keying (older persisted records).
	TakeLast() (StateRecord, bool)
}

// MemoryStateStore is a mutex-guarded in-memory StateStore.
type MemoryStateStore struct {
	mu        sync.Mutex
	records   map[string]StateRecord
	lastState string
}

// NewMemoryStateStore creates an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{records: make(map[string]StateRecord)}
}

// Put stores a record under its state key and updates the last-state pointer.
func (s *MemoryStateStore) Put(state string, rec StateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[state] = rec
	s.lastState = state
}

// Take removes and returns the record for state.
func (s *MemoryStateStore) Take(state string) (StateRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[state]
	if !ok {
		return StateRecord{}, false
	}
	delete(s.records, state)
	if s.lastState == state {
		s.lastState = ""
	}
	return rec, true
}

// TakeLast removes and returns the most recently stored record.
func (s *MemoryStateStore) TakeLast() (StateRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastState == "" {
		return StateRecord{}, false
	}
	rec, ok := s.records[s.lastState]
	if !ok {
		s.lastState = ""
		return StateRecord{}, false
	}
	delete(s.records, s.lastState)
	s.lastState = ""
	return rec, true
}

var _ StateStore = (*MemoryStateStore)(nil)
