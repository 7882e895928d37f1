// Package jsonstore keeps a collection of records as a single JSON array file.
//
// The whole file is rewritten on every mutation. Mutations are serialized by a
// mutex and applied to a private copy, so a failed callback or a failed write
// leaves both memory and disk at the previous state.
package jsonstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Collection is a JSON-array-backed list of T.
type Collection[T any] struct {
	path string

	mu sync.RWMutex
	// last persisted encoding; every read decodes a fresh copy from it
	data []byte
}

// Open loads the collection stored at path, creating an empty one when the
// file does not exist yet. An empty path keeps the collection in memory only.
func Open[T any](path string) (*Collection[T], error) {
	c := &Collection[T]{path: path, data: []byte("[]")}
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	case len(raw) == 0:
		return c, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	c.data = raw
	return c, nil
}

// Snapshot returns a copy of every record in insertion order.
func (c *Collection[T]) Snapshot() ([]T, error) {
	c.mu.RLock()
	data := c.data
	c.mu.RUnlock()
	return decode[T](data)
}

// Find returns the first record matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := c.Snapshot()
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if pred(item) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Filter returns every record matching pred in insertion order.
func (c *Collection[T]) Filter(pred func(T) bool) ([]T, error) {
	items, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Mutate runs fn on a copy of the records and persists whatever it returns.
// If fn returns an error nothing is written and the error is passed through.
func (c *Collection[T]) Mutate(fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := decode[T](c.data)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}
	if err := c.write(data); err != nil {
		return err
	}
	c.data = data
	return nil
}

func (c *Collection[T]) write(data []byte) error {
	if c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", c.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", c.path, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", c.path, err)
	}
	return nil
}

func decode[T any](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
