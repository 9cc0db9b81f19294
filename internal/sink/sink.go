// Package sink delivers admissions downstream. The controller decides who
// is admitted; a Sink is the channel those decisions leave the process on:
// in-process subscribers (SSE), a NATS subject, or nothing at all.
package sink

import (
	"context"

	"github.com/rzbill/turnstile/internal/gate"
)

// Sink receives the admissions decided by one controller invocation, in
// decision order.
type Sink interface {
	Publish(ctx context.Context, gateName string, admissions []gate.Admission) error
	Close() error
}

// Noop discards admissions.
type Noop struct{}

func (Noop) Publish(context.Context, string, []gate.Admission) error { return nil }
func (Noop) Close() error                                            { return nil }

// Multi fans admissions out to several sinks; the first error wins but
// every sink still sees the batch.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, gateName string, admissions []gate.Admission) error {
	var firstErr error
	for _, s := range m {
		if err := s.Publish(ctx, gateName, admissions); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
