package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/turnstile/internal/gate"
)

func TestDispatcherFanout(t *testing.T) {
	d := NewDispatcher(8)
	defer d.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := d.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ch2, err := d.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe2: %v", err)
	}
	other, err := d.Subscribe(ctx, "g2")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}

	adm := []gate.Admission{{Entry: gate.Entry{Key: "k", Payload: []byte("p")}}}
	if err := d.Publish(ctx, "g1", adm); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan gate.Admission{ch1, ch2} {
		select {
		case got := <-ch:
			if string(got.Payload) != "p" {
				t.Fatalf("payload: %q", got.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for admission")
		}
	}
	select {
	case <-other:
		t.Fatalf("g2 subscriber must not receive g1 admissions")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDispatcherUnsubscribeOnCancel(t *testing.T) {
	d := NewDispatcher(8)
	defer d.Close()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := d.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	// channel closes once the unsubscribe goroutine runs
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after cancel")
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Close()
	ctx := context.Background()
	ch, err := d.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	adm := func(p string) []gate.Admission {
		return []gate.Admission{{Entry: gate.Entry{Payload: []byte(p)}}}
	}
	_ = d.Publish(ctx, "g1", adm("first"))
	_ = d.Publish(ctx, "g1", adm("dropped"))

	got := <-ch
	if string(got.Payload) != "first" {
		t.Fatalf("expected first, got %q", got.Payload)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected overflow dropped, got %q", extra.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishWhileUnsubscribing(t *testing.T) {
	d := NewDispatcher(2)
	defer d.Close()
	ctx := context.Background()

	batch := make([]gate.Admission, 64)
	for i := range batch {
		batch[i] = gate.Admission{Entry: gate.Entry{Key: "k"}}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = d.Publish(ctx, "g1", batch)
		}
	}()

	// Subscribers come and go while batches are in flight; a send on a
	// channel closed by unsubscribe would panic the publisher goroutine.
	for i := 0; i < 200; i++ {
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := d.Subscribe(subCtx, "g1")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		cancel()
		for range ch {
		}
	}
	close(done)
	wg.Wait()
}

func TestSubscribeAfterClose(t *testing.T) {
	d := NewDispatcher(4)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := d.Subscribe(context.Background(), "g1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMultiSink(t *testing.T) {
	d1 := NewDispatcher(4)
	d2 := NewDispatcher(4)
	defer d1.Close()
	defer d2.Close()
	m := Multi{d1, d2, Noop{}}
	ctx := context.Background()

	ch1, _ := d1.Subscribe(ctx, "g")
	ch2, _ := d2.Subscribe(ctx, "g")
	if err := m.Publish(ctx, "g", []gate.Admission{{Entry: gate.Entry{Payload: []byte("x")}}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := <-ch1; string(got.Payload) != "x" {
		t.Fatalf("d1 missed admission")
	}
	if got := <-ch2; string(got.Payload) != "x" {
		t.Fatalf("d2 missed admission")
	}
}
