// Package store defines the persistence boundary for gate state. The
// controller owns the bytes; a Store only moves them. Backends must present
// read-after-write consistency for a given gate name.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load and LoadMeta when no record exists.
var ErrNotFound = errors.New("store: record not found")

// Store persists gate records keyed by gate name. Each gate has a state
// record (the controller's queue state) and a meta record (host-side
// settings such as the default mode).
type Store interface {
	// Load returns the state record for a gate, or ErrNotFound.
	Load(ctx context.Context, gate string) ([]byte, error)
	// Save writes the state record for a gate, replacing any previous one.
	Save(ctx context.Context, gate string, data []byte) error
	// Delete removes a gate's state and meta records. Absent gates are a no-op.
	Delete(ctx context.Context, gate string) error

	// LoadMeta returns the meta record for a gate, or ErrNotFound.
	LoadMeta(ctx context.Context, gate string) ([]byte, error)
	// SaveMeta writes the meta record for a gate.
	SaveMeta(ctx context.Context, gate string, data []byte) error

	// List returns the names of all known gates, sorted.
	List(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}
