package pebblestore

import (
	"context"
	"errors"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/rzbill/turnstile/internal/store"
)

// Store implements store.Store over an embedded Pebble database.
type Store struct {
	db *DB
}

var _ store.Store = (*Store)(nil)

// OpenStore opens the Pebble database and wraps it as a store.Store.
func OpenStore(opts Options) (*Store, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying database for advanced operations.
func (s *Store) DB() *DB { return s.db }

// Load returns the state record for a gate.
func (s *Store) Load(_ context.Context, gate string) ([]byte, error) {
	return s.get(stateKey(gate))
}

// Save writes the state record for a gate.
func (s *Store) Save(_ context.Context, gate string, data []byte) error {
	return s.db.Set(stateKey(gate), data)
}

// Delete removes a gate's state and meta records in one batch.
func (s *Store) Delete(ctx context.Context, gate string) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(stateKey(gate), nil); err != nil {
		return err
	}
	if err := b.Delete(metaKey(gate), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// LoadMeta returns the meta record for a gate.
func (s *Store) LoadMeta(_ context.Context, gate string) ([]byte, error) {
	return s.get(metaKey(gate))
}

// SaveMeta writes the meta record for a gate.
func (s *Store) SaveMeta(_ context.Context, gate string, data []byte) error {
	return s.db.Set(metaKey(gate), data)
}

// List scans the gate key space and returns distinct gate names, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	lo, hi := keyRange(gatePrefix)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	set := make(map[string]struct{})
	for ok := it.First(); ok; ok = it.Next() {
		if name, ok := gateFromKey(it.Key()); ok {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte) ([]byte, error) {
	val, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}
