// Package client contains Cobra CLI commands that drive a turnstile
// server over its HTTP API.
package client
