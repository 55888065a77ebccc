package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/st-keller/jimmy-client/types"
)

// File is a Store persisted as one JSON object mapping id to text.
type File struct {
	mu    sync.Mutex
	path  string
	texts map[string]string
}

// OpenFile loads path if it exists. A missing file starts empty.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, texts: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.texts); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", path, err)
	}
	return f, nil
}

// Get implements Store.
func (f *File) Get(_ context.Context, id types.ItemID) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.texts[id.String()]
	return text, ok, nil
}

// Put stores text and rewrites the file atomically.
func (f *File) Put(_ context.Context, id types.ItemID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.texts[id.String()]
	f.texts[id.String()] = text
	if err := f.flush(); err != nil {
		if had {
			f.texts[id.String()] = prev
		} else {
			delete(f.texts, id.String())
		}
		return err
	}
	return nil
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.texts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jimmy-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Close implements Store. Every Put is already on disk.
func (f *File) Close() error { return nil }
