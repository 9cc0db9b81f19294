// Package gatesvc hosts the gate controller: it serializes invocations per
// gate, moves state through the store, and hands admissions to the sink.
package gatesvc
