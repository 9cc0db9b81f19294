// Package pebblestore persists gate state in an embedded Pebble database.
// It is the default backend: a single-node store with batch commits whose
// fsync behavior is tunable between durability and throughput.
package pebblestore
