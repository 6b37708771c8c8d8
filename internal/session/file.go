// ABOUTME: JSON file persister for session snapshots.
// ABOUTME: Writes atomically via temp file + rename; missing files load as nil.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// unsafeKeyChars matches characters not allowed in per-key file names.
var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FilePersister stores snapshots as JSON files. The default key maps to
// Path; other keys are stored next to it as session-<key>.json.
type FilePersister struct {
	Path string
}

// NewFilePersister creates a file persister rooted at path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

func (p *FilePersister) pathFor(key string) string {
	if key == "" || key == DefaultKey {
		return p.Path
	}
	name := "session-" + unsafeKeyChars.ReplaceAllString(key, "_") + ".json"
	return filepath.Join(filepath.Dir(p.Path), name)
}

// Load reads the snapshot for key.
func (p *FilePersister) Load(_ context.Context, key string) (*Snapshot, error) {
	data, err := os.ReadFile(p.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot for key.
func (p *FilePersister) Save(_ context.Context, key string, snap *Snapshot) error {
	path := p.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Delete removes the snapshot for key. Missing files are not an error.
func (p *FilePersister) Delete(_ context.Context, key string) error {
	err := os.Remove(p.pathFor(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
