// ABOUTME: Hands out session stores per logical connection.
// ABOUTME: Shared mode reuses one store; per-connection mode keys stores by MCP session id.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Mode selects how connections map to stores.
type Mode string

const (
	// ModeShared gives every connection the same store.
	ModeShared Mode = "shared"
	// ModePerConnection gives each connection its own store.
	ModePerConnection Mode = "per_connection"
)

// ParseMode validates a configured mode. Empty means shared.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeShared:
		return ModeShared, nil
	case ModePerConnection:
		return ModePerConnection, nil
	default:
		return "", fmt.Errorf("unknown session mode %q", s)
	}
}

// Deleter is implemented by persisters that can drop a stored snapshot.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Manager owns the stores for a running process.
type Manager struct {
	mode      Mode
	persister Persister
	logger    *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager creates a manager. A nil persister keeps state in memory only.
func NewManager(mode Mode, p Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeShared
	}
	return &Manager{
		mode:      mode,
		persister: p,
		logger:    logger,
		stores:    make(map[string]*Store),
	}
}

// Mode returns the manager's mode.
func (m *Manager) Mode() Mode { return m.mode }

// For returns the store for connID, opening it on first use.
func (m *Manager) For(ctx context.Context, connID string) *Store {
	key := m.keyFor(connID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[key]; ok {
		return s
	}
	s := Open(ctx, m.persister, key, m.logger.With("session_key", key))
	m.stores[key] = s
	return s
}

// Release drops the store for connID. In per-connection mode its snapshot
// is deleted too; the shared store is never released.
func (m *Manager) Release(ctx context.Context, connID string) {
	if m.mode != ModePerConnection || connID == "" {
		return
	}
	key := m.keyFor(connID)

	m.mu.Lock()
	delete(m.stores, key)
	m.mu.Unlock()

	if d, ok := m.persister.(Deleter); ok {
		if err := d.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete session snapshot", "key", key, "error", err)
		}
	}
}

// Len returns the number of open stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

func (m *Manager) keyFor(connID string) string {
	if m.mode == ModeShared || connID == "" {
		return DefaultKey
	}
	return connID
}
