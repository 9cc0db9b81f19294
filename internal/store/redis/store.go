package redisstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/rzbill/turnstile/internal/store"
)

// Key schema:
//   turnstile:gate:{name}:state
//   turnstile:gate:{name}:meta

const (
	keyPrefix   = "turnstile:gate:"
	stateSuffix = ":state"
	metaSuffix  = ":meta"
)

// Store implements store.Store over a Redis backend.
type Store struct {
	client *redis.Client
}

var _ store.Store = (*Store)(nil)

// New returns a Redis-backed store using the provided client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Open dials the given address and returns a Redis-backed store.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client), nil
}

func stateKey(gate string) string { return keyPrefix + gate + stateSuffix }
func metaKey(gate string) string  { return keyPrefix + gate + metaSuffix }

// Load returns the state record for a gate.
func (s *Store) Load(ctx context.Context, gate string) ([]byte, error) {
	return s.get(ctx, stateKey(gate))
}

// Save writes the state record for a gate.
func (s *Store) Save(ctx context.Context, gate string, data []byte) error {
	return s.client.Set(ctx, stateKey(gate), data, 0).Err()
}

// Delete removes a gate's state and meta records.
func (s *Store) Delete(ctx context.Context, gate string) error {
	return s.client.Del(ctx, stateKey(gate), metaKey(gate)).Err()
}

// LoadMeta returns the meta record for a gate.
func (s *Store) LoadMeta(ctx context.Context, gate string) ([]byte, error) {
	return s.get(ctx, metaKey(gate))
}

// SaveMeta writes the meta record for a gate.
func (s *Store) SaveMeta(ctx context.Context, gate string, data []byte) error {
	return s.client.Set(ctx, metaKey(gate), data, 0).Err()
}

// List scans the gate key space and returns distinct gate names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	set := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 256).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if name, ok := gateFromKey(k); ok {
				set[name] = struct{}{}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func gateFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, keyPrefix)
	switch {
	case strings.HasSuffix(rest, stateSuffix):
		return strings.TrimSuffix(rest, stateSuffix), true
	case strings.HasSuffix(rest, metaSuffix):
		return strings.TrimSuffix(rest, metaSuffix), true
	default:
		return "", false
	}
}
