// Package serverrun wires the runtime, services, sinks and HTTP server
// into a single blocking Run call used by the CLI.
package serverrun
