package gate

import (
	"testing"

	"github.com/rzbill/turnstile/pkg/id"
)

func TestStateCodecRoundTrip(t *testing.T) {
	st := NewState()
	gen := id.NewGenerator()
	Apply(st, ModeMulti, []Arrival{
		{Key: "a", Payload: []byte("x"), Headers: map[string]string{"src": "test"}},
		{Key: "b", Payload: []byte("y")},
		{Key: "a", Payload: []byte("z")},
	}, nil, 42, gen)

	b, err := EncodeState(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeState(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalWaiting() != st.TotalWaiting() || got.LockedCount() != st.LockedCount() {
		t.Fatalf("roundtrip lost entries")
	}
	ks := got.Keys["a"]
	if ks == nil || len(ks.Queue) != 2 || !ks.Locked {
		t.Fatalf("key a state lost: %+v", ks)
	}
	if ks.Queue[0].Headers["src"] != "test" {
		t.Fatalf("headers lost")
	}
	if ks.Queue[0].EnqueuedAtMs != 42 {
		t.Fatalf("timestamp lost")
	}
}

func TestDecodeStateRejectsCorruption(t *testing.T) {
	st := NewState()
	Apply(st, ModeMulti, []Arrival{{Key: "k", Payload: []byte("p")}}, nil, 1, id.NewGenerator())
	b, err := EncodeState(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// flipped body byte
	bad := append([]byte(nil), b...)
	bad[7] ^= 0xFF
	if _, err := DecodeState(bad); err == nil {
		t.Fatalf("expected checksum failure")
	}

	// truncated
	if _, err := DecodeState(b[:len(b)-2]); err == nil {
		t.Fatalf("expected length failure")
	}

	// wrong version
	bad = append([]byte(nil), b...)
	bad[0] = 99
	if _, err := DecodeState(bad); err == nil {
		t.Fatalf("expected version failure")
	}

	// empty
	if _, err := DecodeState(nil); err == nil {
		t.Fatalf("expected failure on empty input")
	}
}
