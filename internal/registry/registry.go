// Package registry tracks gate metadata: the host-side settings of each
// named gate, kept separate from the controller's queue state.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rzbill/turnstile/internal/store"
)

// Meta holds gate metadata and optional limit overrides.
type Meta struct {
	Name string `json:"name"`
	// Mode is the gate's default mode: "single" or "multi". Requests may
	// override it per invocation.
	Mode            string `json:"mode"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
}

// Defaults returns baseline metadata for new gates.
func Defaults() Meta {
	return Meta{
		Mode:            "multi",
		PayloadMaxBytes: 1 << 20, // 1 MiB
	}
}

// EnsureGate creates a gate meta record if absent, returning the effective
// meta. Idempotent: returns the existing record when already present.
func EnsureGate(ctx context.Context, st store.Store, name string, defaults Meta) (Meta, error) {
	if b, err := st.LoadMeta(ctx, name); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// fallthrough to rewrite if corrupted
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Meta{}, err
	}
	m := defaults
	m.Name = name
	m.CreatedAtMs = time.Now().UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := st.SaveMeta(ctx, name, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// GetMeta loads a gate's meta record; store.ErrNotFound when the gate is
// unknown.
func GetMeta(ctx context.Context, st store.Store, name string) (Meta, error) {
	b, err := st.LoadMeta(ctx, name)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}
