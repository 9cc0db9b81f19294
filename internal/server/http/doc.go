// Package httpserver exposes the gates service over HTTP: JSON endpoints
// for apply/enqueue/release, read-only views, an SSE admission stream, a
// health probe and the Prometheus scrape endpoint.
package httpserver
