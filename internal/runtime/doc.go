// Package runtime wires storage, configuration, and gate registration for
// a single-node turnstile instance. Services hold a Runtime rather than
// raw storage handles.
package runtime
