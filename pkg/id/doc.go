// Package id generates 128-bit, lexicographically sortable identifiers.
// Turnstile uses them as admission tickets: the ID of a queue entry doubles
// as a stable reference for logs, metrics, and downstream consumers.
package id
