// Package file persists the order list as a single JSON blob on local disk,
// mirroring the shape the store hands it: a flat record collection with no
// schema versioning. Unknown fields are dropped silently on read.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/prato-delivery/internal/domain/order"
)

// SnapshotStore reads and writes the full order list at a fixed path. Writes
// are atomic: the blob is written to a temp file in the same directory and
// renamed over the target, so a crash mid-write never leaves a torn snapshot.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotStore creates a store writing to path. The parent directory is
// created if missing.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot directory")
	}
	return &SnapshotStore{path: path}, nil
}

// Load reads the persisted order list. A missing file is not an error: it
// hydrates to an empty list.
func (s *SnapshotStore) Load(_ context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", s.path)
	}

	var orders []order.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.path)
	}
	return orders, nil
}

// Save replaces the persisted list with orders.
func (s *SnapshotStore) Save(_ context.Context, orders []order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode orders")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".orders-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "rename into %s", s.path)
	}
	return nil
}
