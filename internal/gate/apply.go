package gate

import (
	"sort"

	"github.com/rzbill/turnstile/pkg/id"
)

// Arrival is an incoming request for exclusive access to a key.
type Arrival struct {
	Key     string            `json:"key"`
	Payload []byte            `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Signal is an external notification that the holder for a key finished.
// A signal with an empty key is ignored.
type Signal struct {
	Key string `json:"key"`
}

// Admission is the grant of the lock to a queue head; the carried entry's
// payload is a copy of the original arrival payload.
type Admission struct {
	Entry
}

// Apply runs one controller invocation against st: arrivals are appended
// to their queues, every unlocked non-empty queue promotes its head, then
// release signals advance their queues in batch order. Admissions are
// returned in decision order. Callers must not invoke Apply concurrently
// on the same state.
func Apply(st *State, mode Mode, arrivals []Arrival, signals []Signal, nowMs int64, gen *id.Generator) []Admission {
	st.init()
	var admitted []Admission

	// Enqueue phase: arrivals are never rejected; queueing is the
	// admission mechanism, not backpressure.
	touched := make([]string, 0, len(arrivals))
	seen := make(map[string]bool, len(arrivals))
	for _, a := range arrivals {
		slot := slotKey(mode, a.Key)
		ks := st.Keys[slot]
		if ks == nil {
			ks = &KeyState{}
			st.Keys[slot] = ks
		}
		ks.Queue = append(ks.Queue, Entry{
			ID:           gen.Next(),
			Key:          a.Key,
			Payload:      append([]byte(nil), a.Payload...),
			Headers:      copyHeaders(a.Headers),
			EnqueuedAtMs: nowMs,
		})
		if !seen[slot] {
			seen[slot] = true
			touched = append(touched, slot)
		}
	}

	// Lock promotion: grant the lock to the head of every unlocked,
	// non-empty queue. Queues touched this invocation promote in arrival
	// order; any others (states rehydrated mid-transient) follow in key
	// order.
	for _, slot := range promotionOrder(st, touched, seen) {
		ks := st.Keys[slot]
		if ks == nil || ks.Locked || len(ks.Queue) == 0 {
			continue
		}
		ks.Locked = true
		admitted = append(admitted, admit(ks.Queue[0]))
	}

	// Release phase: signals are applied in batch order. Unmatched or
	// stale signals are no-ops, never errors.
	for _, s := range signals {
		if s.Key == "" {
			continue
		}
		slot := slotKey(mode, s.Key)
		ks := st.Keys[slot]
		if ks == nil || len(ks.Queue) == 0 {
			continue
		}
		// Single mode keeps one FIFO across keys, so the signal key must
		// match the head's key to release it. Multi mode selects the queue
		// by key, so no head comparison applies.
		if mode == ModeSingle && ks.Queue[0].Key != s.Key {
			continue
		}
		ks.Queue = ks.Queue[1:]
		ks.Locked = false
		if len(ks.Queue) > 0 {
			ks.Locked = true
			admitted = append(admitted, admit(ks.Queue[0]))
		} else {
			// Garbage-collect the emptied slot so the map does not
			// accumulate idle keys.
			delete(st.Keys, slot)
		}
	}

	return admitted
}

func promotionOrder(st *State, touched []string, seen map[string]bool) []string {
	rest := make([]string, 0, len(st.Keys))
	for slot := range st.Keys {
		if !seen[slot] {
			rest = append(rest, slot)
		}
	}
	sort.Strings(rest)
	return append(touched, rest...)
}

func admit(e Entry) Admission {
	out := e
	out.Payload = append([]byte(nil), e.Payload...)
	out.Headers = copyHeaders(e.Headers)
	return Admission{Entry: out}
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
