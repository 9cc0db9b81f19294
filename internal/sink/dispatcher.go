package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/rzbill/turnstile/internal/gate"
)

// ErrClosed is returned by Subscribe after the dispatcher has been closed.
var ErrClosed = errors.New("sink: dispatcher closed")

// Dispatcher is an in-process fanout of admissions to live subscribers.
// Subscribers get a buffered channel; when a subscriber falls behind, new
// admissions for it are dropped rather than blocking the controller.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[string][]*subscriber
	closed bool
	buf    int
}

type subscriber struct {
	ch chan gate.Admission
}

// NewDispatcher creates a dispatcher with the given per-subscriber buffer.
func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{subs: make(map[string][]*subscriber), buf: buffer}
}

// Publish fans the batch out to all subscribers of the gate.
func (d *Dispatcher) Publish(_ context.Context, gateName string, admissions []gate.Admission) error {
	if len(admissions) == 0 {
		return nil
	}
	// Sends stay under the mutex so an unsubscribe cannot close a channel
	// mid-batch. Sends never block, so holding it across the loop is safe.
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.subs[gateName] {
		for _, adm := range admissions {
			select {
			case sub.ch <- adm:
			default:
				// slow subscriber, drop
			}
		}
	}
	return nil
}

// Subscribe registers for a gate's admission feed until ctx is done.
func (d *Dispatcher) Subscribe(ctx context.Context, gateName string) (<-chan gate.Admission, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscriber{ch: make(chan gate.Admission, d.buf)}
	d.subs[gateName] = append(d.subs[gateName], sub)
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.unsubscribe(gateName, sub)
	}()
	return sub.ch, nil
}

func (d *Dispatcher) unsubscribe(gateName string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subs[gateName]
	for i, s := range subs {
		if s == sub {
			d.subs[gateName] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			break
		}
	}
	if len(d.subs[gateName]) == 0 {
		delete(d.subs, gateName)
	}
}

// Close drops all subscribers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for gateName, subs := range d.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(d.subs, gateName)
	}
	return nil
}
