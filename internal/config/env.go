package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TURNSTILE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setString(&cfg.DefaultMode, "TURNSTILE_DEFAULT_MODE")
	setBool(&cfg.AllowAutoCreateGates, "TURNSTILE_ALLOW_AUTO_CREATE_GATES")
	setString(&cfg.GateNameRegex, "TURNSTILE_GATE_NAME_REGEX")
	setInt(&cfg.PayloadMaxBytes, "TURNSTILE_PAYLOAD_MAX_BYTES")

	setString(&cfg.Store.Backend, "TURNSTILE_STORE_BACKEND")
	setString(&cfg.Store.DataDir, "TURNSTILE_DATA_DIR")
	setString(&cfg.Store.Fsync, "TURNSTILE_FSYNC")
	setInt(&cfg.Store.FsyncIntervalMs, "TURNSTILE_FSYNC_INTERVAL_MS")
	setString(&cfg.Store.RedisAddr, "TURNSTILE_REDIS_ADDR")
	setString(&cfg.Store.RedisPassword, "TURNSTILE_REDIS_PASSWORD")
	setInt(&cfg.Store.RedisDB, "TURNSTILE_REDIS_DB")

	setString(&cfg.Sink.NATSURL, "TURNSTILE_NATS_URL")
	setString(&cfg.Sink.SubjectPrefix, "TURNSTILE_NATS_SUBJECT_PREFIX")

	setString(&cfg.HTTP.Addr, "TURNSTILE_HTTP_ADDR")
	setString(&cfg.Log.Level, "TURNSTILE_LOG_LEVEL")
	setString(&cfg.Log.Format, "TURNSTILE_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
