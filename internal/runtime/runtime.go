package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	cfgpkg "github.com/rzbill/turnstile/internal/config"
	"github.com/rzbill/turnstile/internal/registry"
	"github.com/rzbill/turnstile/internal/store"
	pebblestore "github.com/rzbill/turnstile/internal/store/pebble"
	redisstore "github.com/rzbill/turnstile/internal/store/redis"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Metrics is passed to the Pebble backend when used. Optional.
	Metrics pebblestore.MetricsHook
}

// Runtime owns the store and config for a single-node instance.
type Runtime struct {
	st       store.Store
	config   cfgpkg.Config
	gateName *regexp.Regexp
}

// Open initializes the configured storage backend and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config

	nameRe, err := regexp.Compile("^" + cfg.GateNameRegex + "$")
	if err != nil {
		return nil, fmt.Errorf("runtime: gate name regex: %w", err)
	}

	var st store.Store
	switch cfg.Store.Backend {
	case "", "pebble":
		dataDir := cfg.Store.DataDir
		if dataDir == "" {
			dataDir = cfgpkg.DefaultDataDir()
		}
		fsync, err := pebblestore.ParseFsyncMode(cfg.Store.Fsync)
		if err != nil {
			return nil, err
		}
		st, err = pebblestore.OpenStore(pebblestore.Options{
			DataDir:       dataDir,
			Fsync:         fsync,
			FsyncInterval: time.Duration(cfg.Store.FsyncIntervalMs) * time.Millisecond,
			Metrics:       opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st, err = redisstore.Open(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("runtime: unknown store backend %q", cfg.Store.Backend)
	}

	return &Runtime{st: st, config: cfg, gateName: nameRe}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.st == nil {
		return nil
	}
	return r.st.Close()
}

// CheckHealth performs a simple storage round trip.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.st == nil {
		return errors.New("runtime: store not open")
	}
	_, err := r.st.List(ctx)
	return err
}

// ValidGateName reports whether name satisfies the configured pattern.
func (r *Runtime) ValidGateName(name string) bool {
	return name != "" && r.gateName.MatchString(name)
}

// GateDefaults returns the meta a new gate would be created with.
func (r *Runtime) GateDefaults() registry.Meta {
	defaults := registry.Defaults()
	if r.config.DefaultMode != "" {
		defaults.Mode = r.config.DefaultMode
	}
	if r.config.PayloadMaxBytes > 0 {
		defaults.PayloadMaxBytes = r.config.PayloadMaxBytes
	}
	return defaults
}

// EnsureGate creates a gate meta record if absent.
func (r *Runtime) EnsureGate(ctx context.Context, name string) (registry.Meta, error) {
	return registry.EnsureGate(ctx, r.st, name, r.GateDefaults())
}

// Store exposes the underlying store (internal use only).
func (r *Runtime) Store() store.Store { return r.st }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
