package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileBackend keeps all entries in one JSON file, rewritten atomically on
// every Save.
type FileBackend struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// NewFileBackend returns a backend persisting to path. The file is created
// on the first Save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, entries: make(map[string]Entry)}
}

// Load reads the file. A missing file is an empty store.
func (b *FileBackend) Load(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", b.path, err)
	}

	var entries []Entry
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("store: parse %q: %w", b.path, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		b.entries[e.InstanceID] = e
	}
	return entries, nil
}

// Save records e and rewrites the file through a temp file and rename.
func (b *FileBackend) Save(_ context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.InstanceID] = e

	all := make([]Entry, 0, len(b.entries))
	for _, v := range b.entries {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].InstanceID < all[j].InstanceID })

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// Close is a no-op.
func (b *FileBackend) Close() error { return nil }
