// Package config provides loading and environment overlay for turnstile
// runtime configuration. It exposes a Default() baseline, file loading in
// JSON or YAML, and a FromEnv overlay driven by TURNSTILE_* variables.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/turnstile.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
