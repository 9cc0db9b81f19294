package gatesvc

import (
	"github.com/rzbill/turnstile/internal/gate"
	"github.com/rzbill/turnstile/internal/registry"
)

// ArrivalInput is one enqueue request inside an Apply call.
type ArrivalInput struct {
	Key     string            `json:"key"`
	Payload []byte            `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ApplyRequest is one controller invocation: arrivals and release signals
// applied together against a gate.
type ApplyRequest struct {
	Gate string `json:"gate"`
	// Mode overrides the gate's default mode for this invocation. Optional.
	Mode     string         `json:"mode,omitempty"`
	Arrivals []ArrivalInput `json:"arrivals,omitempty"`
	// Releases carry the keys whose holders finished.
	Releases []string `json:"releases,omitempty"`
}

// ApplyResponse reports the admissions decided by one invocation.
type ApplyResponse struct {
	Admissions []gate.Admission `json:"admissions"`
	Waiting    int              `json:"waiting"`
	LockedKeys int              `json:"locked_keys"`
}

// StatusResponse is a read-only snapshot of one gate.
type StatusResponse struct {
	Gate       string             `json:"gate"`
	Mode       string             `json:"mode"`
	Queues     []gate.QueueStatus `json:"queues"`
	Waiting    int                `json:"waiting"`
	LockedKeys int                `json:"locked_keys"`
}

// GateInfo is one row of ListGates.
type GateInfo struct {
	Meta    registry.Meta `json:"meta"`
	Waiting int           `json:"waiting"`
}

// WaitingResponse lists queued entries, optionally filtered.
type WaitingResponse struct {
	Gate    string              `json:"gate"`
	Entries []gate.WaitingEntry `json:"entries"`
}
