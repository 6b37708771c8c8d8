// ABOUTME: Session store with persist-on-every-mutation semantics.
// ABOUTME: Auth token and phone number are always set or cleared together.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/menu-gateway/internal/menu"
)

// ErrIncompleteAuth is returned by SetAuth when token or phone is empty.
var ErrIncompleteAuth = errors.New("auth token and phone number must both be set")

// DefaultKey is the store key used in shared mode.
const DefaultKey = "default"

// Snapshot is the durable form of a Store.
type Snapshot struct {
	SessionID         string          `json:"sessionId"`
	AuthToken         string          `json:"authToken"`
	PhoneNumber       string          `json:"phoneNumber"`
	LastSearchResults []menu.MenuItem `json:"lastSearchResults"`
}

// normalize enforces the auth invariant and a non-nil result slice.
func (s *Snapshot) normalize() {
	if s.AuthToken == "" || s.PhoneNumber == "" {
		s.AuthToken = ""
		s.PhoneNumber = ""
	}
	if s.LastSearchResults == nil {
		s.LastSearchResults = []menu.MenuItem{}
	}
}

// Persister saves and loads snapshots by key.
// Load returns (nil, nil) when nothing is stored under key.
type Persister interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap *Snapshot) error
}

// Store is the session state for one logical connection.
type Store struct {
	mu        sync.RWMutex
	key       string
	state     Snapshot
	persister Persister
	logger    *slog.Logger
}

// Open restores the store saved under key, or starts empty when there is
// nothing to restore. A snapshot that cannot be read is logged and ignored.
func Open(ctx context.Context, p Persister, key string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = DefaultKey
	}

	s := &Store{key: key, persister: p, logger: logger}
	s.state.normalize()

	if p == nil {
		return s
	}

	snap, err := p.Load(ctx, key)
	switch {
	case err != nil:
		logger.Warn("ignoring unreadable session snapshot", "key", key, "error", err)
	case snap != nil:
		snap.normalize()
		s.state = *snap
		logger.Info("session restored",
			"key", key,
			"has_session", s.state.SessionID != "",
			"authenticated", s.state.AuthToken != "",
			"cached_items", len(s.state.LastSearchResults),
		)
	}
	return s
}

// NewMemoryStore returns a store that is never persisted.
func NewMemoryStore() *Store {
	return Open(context.Background(), nil, DefaultKey, nil)
}

// Key returns the persister key for this store.
func (s *Store) Key() string { return s.key }

// SessionID returns the backend session id, or "" if none.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SessionID
}

// SetSessionID records the backend session id.
func (s *Store) SetSessionID(id string) {
	s.mutate(func(st *Snapshot) { st.SessionID = id })
}

// ClearSessionID forgets the backend session id so the next call creates a new one.
func (s *Store) ClearSessionID() {
	s.mutate(func(st *Snapshot) { st.SessionID = "" })
}

// AuthToken returns the bearer token from OTP verification, or "".
func (s *Store) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AuthToken
}

// PhoneNumber returns the verified phone number, or "".
func (s *Store) PhoneNumber() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PhoneNumber
}

// IsAuthenticated reports whether an auth token is held.
func (s *Store) IsAuthenticated() bool {
	return s.AuthToken() != ""
}

// SetAuth records token and phone together.
func (s *Store) SetAuth(token, phone string) error {
	if token == "" || phone == "" {
		return ErrIncompleteAuth
	}
	s.mutate(func(st *Snapshot) {
		st.AuthToken = token
		st.PhoneNumber = phone
	})
	return nil
}

// ClearAuth forgets the auth token and phone number.
func (s *Store) ClearAuth() {
	s.mutate(func(st *Snapshot) {
		st.AuthToken = ""
		st.PhoneNumber = ""
	})
}

// LastSearchResults returns a copy of the cached search results.
func (s *Store) LastSearchResults() []menu.MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]menu.MenuItem, len(s.state.LastSearchResults))
	copy(out, s.state.LastSearchResults)
	return out
}

// SetLastSearchResults replaces the cached search results.
func (s *Store) SetLastSearchResults(items []menu.MenuItem) {
	cp := make([]menu.MenuItem, len(items))
	copy(cp, items)
	s.mutate(func(st *Snapshot) { st.LastSearchResults = cp })
}

// Reset clears all state.
func (s *Store) Reset() {
	s.mutate(func(st *Snapshot) {
		*st = Snapshot{LastSearchResults: []menu.MenuItem{}}
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	snap := s.state
	snap.LastSearchResults = make([]menu.MenuItem, len(s.state.LastSearchResults))
	copy(snap.LastSearchResults, s.state.LastSearchResults)
	return snap
}

// mutate applies fn and persists the result. The write happens under the
// lock so snapshots reach the persister in mutation order.
func (s *Store) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	if s.persister == nil {
		return
	}

	snap := s.copyLocked()
	if err := s.persister.Save(context.Background(), s.key, &snap); err != nil {
		s.logger.Warn("failed to persist session snapshot", "key", s.key, "error", err)
	}
}
