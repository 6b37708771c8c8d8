// ABOUTME: Tests for the session store, file/sqlite persisters and manager.
// ABOUTME: Covers restart round-trips, corrupt snapshots and the auth invariant.

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/menu-gateway/internal/menu"
)

// failingPersister always fails to save and counts attempts.
type failingPersister struct {
	mu    sync.Mutex
	saves int
}

func (f *failingPersister) Load(context.Context, string) (*Snapshot, error) { return nil, nil }

func (f *failingPersister) Save(context.Context, string, *Snapshot) error {
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
	return errors.New("disk full")
}

func sampleItems() []menu.MenuItem {
	return []menu.MenuItem{
		{ID: 1, Name: "Margherita", Price: 9.5},
		{ID: 2, Name: "Pepperoni", Price: 11},
		{ID: 3, Name: "Hawaiian", Price: 12.25, OptionSet: &menu.OptionSet{ID: 9, Name: "Size", Rules: "Select exactly 1"}},
	}
}

func TestStore_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersister(path)

	s := Open(ctx, p, DefaultKey, nil)
	s.SetSessionID("sess-1")
	require.NoError(t, s.SetAuth("tok-1", "+15550100"))
	s.SetLastSearchResults(sampleItems())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	restarted := Open(ctx, NewFilePersister(path), DefaultKey, nil)
	assert.Equal(t, s.Snapshot(), restarted.Snapshot())
	assert.Equal(t, "sess-1", restarted.SessionID())
	assert.True(t, restarted.IsAuthenticated())
	assert.Equal(t, "+15550100", restarted.PhoneNumber())
	require.Len(t, restarted.LastSearchResults(), 3)
	assert.Equal(t, "Size", restarted.LastSearchResults()[2].OptionSet.Name)
}

func TestStore_MissingSnapshotStartsEmpty(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "session.json"))
	s := Open(context.Background(), p, DefaultKey, nil)

	assert.Empty(t, s.SessionID())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.PhoneNumber())
	assert.Empty(t, s.LastSearchResults())
}

func TestStore_CorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := Open(context.Background(), NewFilePersister(path), DefaultKey, nil)
	assert.Empty(t, s.SessionID())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.LastSearchResults())

	// The store keeps working and overwrites the corrupt file.
	s.SetSessionID("fresh")
	again := Open(context.Background(), NewFilePersister(path), DefaultKey, nil)
	assert.Equal(t, "fresh", again.SessionID())
}

func TestStore_HalfAuthSnapshotLoadsUnauthenticated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessionId":"s","authToken":"tok","phoneNumber":""}`), 0600))

	s := Open(context.Background(), NewFilePersister(path), DefaultKey, nil)
	assert.Equal(t, "s", s.SessionID())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AuthToken())
}

func TestStore_SetAuthIsAtomic(t *testing.T) {
	s := NewMemoryStore()

	assert.ErrorIs(t, s.SetAuth("tok", ""), ErrIncompleteAuth)
	assert.ErrorIs(t, s.SetAuth("", "+15550100"), ErrIncompleteAuth)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.PhoneNumber())

	require.NoError(t, s.SetAuth("tok", "+15550100"))
	assert.True(t, s.IsAuthenticated())

	s.ClearAuth()
	assert.Empty(t, s.AuthToken())
	assert.Empty(t, s.PhoneNumber())
}

func TestStore_PersistFailureIsSwallowed(t *testing.T) {
	p := &failingPersister{}
	s := Open(context.Background(), p, DefaultKey, nil)

	s.SetSessionID("sess-1")
	s.SetLastSearchResults(sampleItems())
	require.NoError(t, s.SetAuth("tok", "+15550100"))

	assert.Equal(t, 3, p.saves)
	assert.Equal(t, "sess-1", s.SessionID())
	assert.True(t, s.IsAuthenticated())
	assert.Len(t, s.LastSearchResults(), 3)
}

func TestStore_ResultsAreCopied(t *testing.T) {
	s := NewMemoryStore()
	items := sampleItems()
	s.SetLastSearchResults(items)

	items[0].Name = "mutated"
	got := s.LastSearchResults()
	assert.Equal(t, "Margherita", got[0].Name)

	got[1].Name = "also mutated"
	assert.Equal(t, "Pepperoni", s.LastSearchResults()[1].Name)
}

func TestStore_ClearSessionIDAndReset(t *testing.T) {
	s := NewMemoryStore()
	s.SetSessionID("sess-1")
	require.NoError(t, s.SetAuth("tok", "+15550100"))
	s.SetLastSearchResults(sampleItems())

	s.ClearSessionID()
	assert.Empty(t, s.SessionID())
	assert.True(t, s.IsAuthenticated(), "clearing the session id leaves auth alone")

	s.Reset()
	assert.Equal(t, Snapshot{LastSearchResults: []menu.MenuItem{}}, s.Snapshot())
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := NewSQLitePersister(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	snap, err := p.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, snap)

	s := Open(ctx, p, "conn-1", nil)
	s.SetSessionID("sess-9")
	require.NoError(t, s.SetAuth("tok", "+15550100"))
	s.SetLastSearchResults(sampleItems())

	restored := Open(ctx, p, "conn-1", nil)
	assert.Equal(t, s.Snapshot(), restored.Snapshot())

	require.NoError(t, p.Delete(ctx, "conn-1"))
	snap, err = p.Load(ctx, "conn-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLitePersister_Memory(t *testing.T) {
	p, err := NewSQLitePersister(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	s := Open(context.Background(), p, DefaultKey, nil)
	s.SetSessionID("sess-mem")
	assert.Equal(t, "sess-mem", Open(context.Background(), p, DefaultKey, nil).SessionID())
}

func TestFilePersister_PerKeyPaths(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "session.json"))

	assert.Equal(t, filepath.Join(dir, "session.json"), p.pathFor(DefaultKey))
	assert.Equal(t, filepath.Join(dir, "session-abc-123.json"), p.pathFor("abc-123"))
	assert.Equal(t, filepath.Join(dir, "session-___etc.json"), p.pathFor("../etc"))
}

func TestManager_SharedMode(t *testing.T) {
	m := NewManager(ModeShared, nil, nil)
	a := m.For(context.Background(), "conn-a")
	b := m.For(context.Background(), "conn-b")

	assert.Same(t, a, b)
	assert.Equal(t, DefaultKey, a.Key())

	m.Release(context.Background(), "conn-a")
	assert.Same(t, a, m.For(context.Background(), "conn-c"))
}

func TestManager_PerConnectionMode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "session.json"))
	m := NewManager(ModePerConnection, p, nil)

	a := m.For(ctx, "conn-a")
	b := m.For(ctx, "conn-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, m.For(ctx, "conn-a"))
	assert.Equal(t, 2, m.Len())

	a.SetSessionID("sess-a")
	_, err := os.Stat(filepath.Join(dir, "session-conn-a.json"))
	require.NoError(t, err)

	m.Release(ctx, "conn-a")
	assert.Equal(t, 1, m.Len())
	_, err = os.Stat(filepath.Join(dir, "session-conn-a.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, m.For(ctx, "conn-a").SessionID())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeShared, mode)

	mode, err = ParseMode("per_connection")
	require.NoError(t, err)
	assert.Equal(t, ModePerConnection, mode)

	_, err = ParseMode("per_tenant")
	assert.Error(t, err)
}
