// Package redisstore persists gate state in Redis. It is an alternative to
// the embedded Pebble backend for deployments that already operate Redis
// and want gate state to survive process replacement without local disk.
package redisstore
