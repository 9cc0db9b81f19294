package gate

import (
	"fmt"
	"sort"

	"github.com/rzbill/turnstile/pkg/id"
)

// Mode selects how a gate partitions its waiters.
type Mode string

const (
	// ModeSingle runs one global FIFO: every arrival waits in the same
	// queue regardless of key. The key is kept as a correlation token and
	// checked against release signals.
	ModeSingle Mode = "single"
	// ModeMulti runs one independent FIFO per key.
	ModeMulti Mode = "multi"
)

// ParseMode converts a mode name, defaulting empty input to ModeMulti.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeMulti, "":
		return ModeMulti, nil
	default:
		return "", fmt.Errorf("gate: unknown mode %q", s)
	}
}

// singleSlot is the reserved map slot holding the global queue in single
// mode. The NUL prefix keeps it out of the user key space.
const singleSlot = "\x00single"

// Entry is one admitted-or-waiting request.
type Entry struct {
	// ID is the admission ticket assigned at enqueue time.
	ID id.ID `json:"id"`
	// Key is the resource identifier the request named on arrival.
	Key string `json:"key"`
	// Payload is opaque application data, emitted verbatim on admission.
	Payload []byte `json:"payload,omitempty"`
	// Headers carry optional application metadata alongside the payload.
	Headers map[string]string `json:"headers,omitempty"`
	// EnqueuedAtMs is the arrival time. Informational only; ordering is
	// FIFO by insertion, not by timestamp.
	EnqueuedAtMs int64 `json:"enqueued_at_ms"`
}

// KeyState is the lock state for one queue slot.
// Locked implies the queue is non-empty and its head holds the lock.
type KeyState struct {
	Queue  []Entry `json:"queue"`
	Locked bool    `json:"locked"`
}

func (ks *KeyState) head() *Entry {
	if len(ks.Queue) == 0 {
		return nil
	}
	return &ks.Queue[0]
}

// State is the persisted shape of one gate. Slots exist only while their
// queue is non-empty.
type State struct {
	Keys map[string]*KeyState `json:"keys"`
}

// NewState returns an empty gate state.
func NewState() *State {
	return &State{Keys: make(map[string]*KeyState)}
}

// init ensures the state has the shape Apply expects without discarding
// pre-existing queue contents.
func (st *State) init() {
	if st.Keys == nil {
		st.Keys = make(map[string]*KeyState)
	}
}

func slotKey(mode Mode, key string) string {
	if mode == ModeSingle {
		return singleSlot
	}
	return key
}

func displayKey(slot string) string {
	if slot == singleSlot {
		return ""
	}
	return slot
}

// QueueStatus is a read-only snapshot of one queue slot.
type QueueStatus struct {
	// Key is the queue's key; empty for the single-mode global queue.
	Key    string `json:"key"`
	Locked bool   `json:"locked"`
	Depth  int    `json:"depth"`
	// Head is the current or next lock holder, nil when the queue is empty.
	Head *Entry `json:"head,omitempty"`
}

// Status returns a snapshot of every queue slot, sorted by key.
func (st *State) Status() []QueueStatus {
	st.init()
	out := make([]QueueStatus, 0, len(st.Keys))
	for slot, ks := range st.Keys {
		qs := QueueStatus{Key: displayKey(slot), Locked: ks.Locked, Depth: len(ks.Queue)}
		if h := ks.head(); h != nil {
			he := *h
			qs.Head = &he
		}
		out = append(out, qs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// WaitingEntry pairs an entry with its queue position; position 0 is the
// head (the holder when the queue is locked).
type WaitingEntry struct {
	Entry
	Position int  `json:"position"`
	Locked   bool `json:"locked"`
}

// Waiting lists all entries across all queue slots in key order, heads first.
func (st *State) Waiting() []WaitingEntry {
	st.init()
	slots := make([]string, 0, len(st.Keys))
	for slot := range st.Keys {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	var out []WaitingEntry
	for _, slot := range slots {
		ks := st.Keys[slot]
		for i, e := range ks.Queue {
			out = append(out, WaitingEntry{Entry: e, Position: i, Locked: ks.Locked})
		}
	}
	return out
}

// TotalWaiting returns the number of entries across all queues, admitted
// heads included.
func (st *State) TotalWaiting() int {
	st.init()
	n := 0
	for _, ks := range st.Keys {
		n += len(ks.Queue)
	}
	return n
}

// LockedCount returns the number of queues whose head holds the lock.
func (st *State) LockedCount() int {
	st.init()
	n := 0
	for _, ks := range st.Keys {
		if ks.Locked {
			n++
		}
	}
	return n
}
