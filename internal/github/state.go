// internal/github/state.go
package github

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// StateStore holds short-lived, single-use OAuth state values mapped to the
// user that initiated the connect flow.
type StateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]stateEntry
	now     func() time.Time
}

type stateEntry struct {
	userID    int64
	expiresAt time.Time
}

// NewStateStore creates a StateStore whose entries expire after ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:     ttl,
		entries: make(map[string]stateEntry),
		now:     time.Now,
	}
}

// Issue generates a random state token bound to the given user.
func (s *StateStore) Issue(userID int64) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.entries[state] = stateEntry{userID: userID, expiresAt: s.now().Add(s.ttl)}
	return state, nil
}

// Claim consumes a state token, returning the bound user. A state can be
// claimed at most once; expired or unknown states fail.
func (s *StateStore) Claim(state string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return 0, false
	}
	delete(s.entries, state)
	if s.now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.userID, true
}

// prune drops expired entries; called with the lock held.
func (s *StateStore) prune() {
	now := s.now()
	for state, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, state)
		}
	}
}
