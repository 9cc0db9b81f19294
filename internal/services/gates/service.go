package gatesvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/turnstile/internal/gate"
	"github.com/rzbill/turnstile/internal/metrics"
	"github.com/rzbill/turnstile/internal/registry"
	"github.com/rzbill/turnstile/internal/runtime"
	"github.com/rzbill/turnstile/internal/sink"
	"github.com/rzbill/turnstile/internal/store"
	"github.com/rzbill/turnstile/pkg/id"
	logpkg "github.com/rzbill/turnstile/pkg/log"
)

// ErrUnknownGate is returned for operations on gates that do not exist and
// may not be auto-created.
var ErrUnknownGate = errors.New("gatesvc: unknown gate")

// ErrInvalidGateName is returned when a gate name fails the configured pattern.
var ErrInvalidGateName = errors.New("gatesvc: invalid gate name")

// ErrPayloadTooLarge is returned when an arrival payload exceeds the gate's limit.
var ErrPayloadTooLarge = errors.New("gatesvc: payload too large")

// ErrInvalidMode is returned when a request names an unknown gate mode.
var ErrInvalidMode = errors.New("gatesvc: invalid mode")

// nowMs is swapped in tests.
var nowMs = id.NowMs

// Service hosts gate invocations. All state transitions for a gate run
// under that gate's mutex; distinct gates proceed in parallel.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	sink   sink.Sink
	watch  *sink.Dispatcher
	gen    *id.Generator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures the service.
type Options struct {
	Logger logpkg.Logger
	// Sink receives admissions in addition to the watch dispatcher. Optional.
	Sink sink.Sink
}

// New creates the gates service.
func New(rt *runtime.Runtime, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.With(logpkg.Component("gates"))

	s := &Service{
		rt:     rt,
		logger: logger,
		watch:  sink.NewDispatcher(0),
		gen:    id.NewGenerator(),
		locks:  make(map[string]*sync.Mutex),
	}
	if opts.Sink != nil {
		s.sink = sink.Multi{s.watch, opts.Sink}
	} else {
		s.sink = s.watch
	}
	return s
}

// Close shuts down the watch dispatcher and the external sink.
func (s *Service) Close() error {
	return s.sink.Close()
}

func (s *Service) gateLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.locks[name]
	if m == nil {
		m = &sync.Mutex{}
		s.locks[name] = m
	}
	return m
}

func (s *Service) ensure(ctx context.Context, name string) (registry.Meta, error) {
	if !s.rt.ValidGateName(name) {
		return registry.Meta{}, fmt.Errorf("%w: %q", ErrInvalidGateName, name)
	}
	if s.rt.Config().AllowAutoCreateGates {
		return s.rt.EnsureGate(ctx, name)
	}
	m, err := registry.GetMeta(ctx, s.rt.Store(), name)
	if errors.Is(err, store.ErrNotFound) {
		return registry.Meta{}, fmt.Errorf("%w: %q", ErrUnknownGate, name)
	}
	return m, err
}

// resolve returns a gate's meta without creating it. Read paths use this so
// a status or waiting probe against an unknown gate leaves no record behind.
func (s *Service) resolve(ctx context.Context, name string) (registry.Meta, error) {
	if !s.rt.ValidGateName(name) {
		return registry.Meta{}, fmt.Errorf("%w: %q", ErrInvalidGateName, name)
	}
	m, err := registry.GetMeta(ctx, s.rt.Store(), name)
	if errors.Is(err, store.ErrNotFound) {
		if s.rt.Config().AllowAutoCreateGates {
			m = s.rt.GateDefaults()
			m.Name = name
			return m, nil
		}
		return registry.Meta{}, fmt.Errorf("%w: %q", ErrUnknownGate, name)
	}
	return m, err
}

// Apply runs one controller invocation against a gate: arrivals enqueue,
// heads promote, releases advance. The read-modify-write runs under the
// gate's mutex; the mutex is held for the full store round trip.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	meta, err := s.ensure(ctx, req.Gate)
	if err != nil {
		return nil, err
	}

	modeName := req.Mode
	if modeName == "" {
		modeName = meta.Mode
	}
	mode, err := gate.ParseMode(modeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, modeName)
	}

	arrivals := make([]gate.Arrival, 0, len(req.Arrivals))
	for _, a := range req.Arrivals {
		if meta.PayloadMaxBytes > 0 && len(a.Payload) > meta.PayloadMaxBytes {
			return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(a.Payload), meta.PayloadMaxBytes)
		}
		arrivals = append(arrivals, gate.Arrival{Key: a.Key, Payload: a.Payload, Headers: a.Headers})
	}
	signals := make([]gate.Signal, 0, len(req.Releases))
	for _, k := range req.Releases {
		signals = append(signals, gate.Signal{Key: k})
	}

	lock := s.gateLock(req.Gate)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.loadState(ctx, req.Gate)
	if err != nil {
		return nil, err
	}

	before := st.TotalWaiting()
	admissions := gate.Apply(st, mode, arrivals, signals, nowMs(), s.gen)
	// Every effective release pops exactly one entry.
	released := before + len(arrivals) - st.TotalWaiting()

	enc, err := gate.EncodeState(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if err := s.rt.Store().Save(ctx, req.Gate, enc); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	// Admissions are published only after the state that implies them is
	// durable; a crash between the two re-emits rather than drops.
	if len(admissions) > 0 {
		if err := s.sink.Publish(ctx, req.Gate, admissions); err != nil {
			s.logger.Warn("sink publish failed",
				logpkg.Str("gate", req.Gate),
				logpkg.Int("admissions", len(admissions)),
				logpkg.Err(err),
			)
		}
	}

	s.observe(st, len(arrivals), len(signals), len(admissions), len(signals)-released)

	s.logger.Debug("applied invocation",
		logpkg.Str("gate", req.Gate),
		logpkg.Str("mode", string(mode)),
		logpkg.Int("arrivals", len(arrivals)),
		logpkg.Int("releases", len(signals)),
		logpkg.Int("admissions", len(admissions)),
	)

	if admissions == nil {
		admissions = []gate.Admission{}
	}
	return &ApplyResponse{
		Admissions: admissions,
		Waiting:    st.TotalWaiting(),
		LockedKeys: st.LockedCount(),
	}, nil
}

// Enqueue submits a single arrival; convenience over Apply.
func (s *Service) Enqueue(ctx context.Context, gateName string, arrival ArrivalInput, mode string) (*ApplyResponse, error) {
	return s.Apply(ctx, ApplyRequest{Gate: gateName, Mode: mode, Arrivals: []ArrivalInput{arrival}})
}

// Release submits a single release signal; convenience over Apply.
func (s *Service) Release(ctx context.Context, gateName, key, mode string) (*ApplyResponse, error) {
	return s.Apply(ctx, ApplyRequest{Gate: gateName, Mode: mode, Releases: []string{key}})
}

// Status returns a snapshot of a gate's queues.
func (s *Service) Status(ctx context.Context, gateName string) (*StatusResponse, error) {
	meta, err := s.resolve(ctx, gateName)
	if err != nil {
		return nil, err
	}
	st, err := s.loadState(ctx, gateName)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		Gate:       gateName,
		Mode:       meta.Mode,
		Queues:     st.Status(),
		Waiting:    st.TotalWaiting(),
		LockedKeys: st.LockedCount(),
	}, nil
}

// ListGates returns every known gate with its queue depth.
func (s *Service) ListGates(ctx context.Context) ([]GateInfo, error) {
	names, err := s.rt.Store().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GateInfo, 0, len(names))
	for _, name := range names {
		meta, err := registry.GetMeta(ctx, s.rt.Store(), name)
		if errors.Is(err, store.ErrNotFound) {
			meta = registry.Meta{Name: name}
		} else if err != nil {
			return nil, err
		}
		st, err := s.loadState(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, GateInfo{Meta: meta, Waiting: st.TotalWaiting()})
	}
	return out, nil
}

// ListWaiting returns queued entries, optionally filtered by a CEL
// expression over key, position, locked, enqueued_at_ms, size, text, json,
// headers and now_ms.
func (s *Service) ListWaiting(ctx context.Context, gateName, filterExpr string) (*WaitingResponse, error) {
	if _, err := s.resolve(ctx, gateName); err != nil {
		return nil, err
	}
	filter, err := newCELFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	st, err := s.loadState(ctx, gateName)
	if err != nil {
		return nil, err
	}
	entries := make([]gate.WaitingEntry, 0)
	for _, we := range st.Waiting() {
		if filter.Eval(we) {
			entries = append(entries, we)
		}
	}
	return &WaitingResponse{Gate: gateName, Entries: entries}, nil
}

// Reset deletes a gate's persisted state and meta. Administrative: waiting
// entries are dropped without admission.
func (s *Service) Reset(ctx context.Context, gateName string) error {
	if !s.rt.ValidGateName(gateName) {
		return fmt.Errorf("%w: %q", ErrInvalidGateName, gateName)
	}
	lock := s.gateLock(gateName)
	lock.Lock()
	defer lock.Unlock()
	if err := s.rt.Store().Delete(ctx, gateName); err != nil {
		return err
	}
	s.logger.Info("gate reset", logpkg.Str("gate", gateName))
	return nil
}

// Watch subscribes to a gate's admission feed until ctx is done.
func (s *Service) Watch(ctx context.Context, gateName string) (<-chan gate.Admission, error) {
	if !s.rt.ValidGateName(gateName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGateName, gateName)
	}
	return s.watch.Subscribe(ctx, gateName)
}

func (s *Service) loadState(ctx context.Context, gateName string) (*gate.State, error) {
	b, err := s.rt.Store().Load(ctx, gateName)
	if errors.Is(err, store.ErrNotFound) {
		return gate.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st, err := gate.DecodeState(b)
	if err != nil {
		return nil, fmt.Errorf("decode state for %q: %w", gateName, err)
	}
	return st, nil
}

func (s *Service) observe(st *gate.State, arrivals, releases, admissions, ignored int) {
	metrics.ArrivalsTotal.Add(float64(arrivals))
	metrics.AdmissionsTotal.Add(float64(admissions))
	metrics.ReleasesTotal.Add(float64(releases))
	if ignored > 0 {
		metrics.ReleasesIgnoredTotal.Add(float64(ignored))
	}
	metrics.WaitingGauge.Set(float64(st.TotalWaiting()))
	metrics.LockedKeysGauge.Set(float64(st.LockedCount()))
}
