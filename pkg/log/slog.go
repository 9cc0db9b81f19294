package log

import (
	"context"
	"log/slog"
)

// bridgeHandler is a slog.Handler that routes records through a Logger's
// formatter and outputs, so libraries that speak slog share the process
// log pipeline.
type bridgeHandler struct {
	logger Logger
	attrs  []slog.Attr
	group  string
}

// NewSlogLogger returns a *slog.Logger backed by logger.
func NewSlogLogger(logger Logger) *slog.Logger {
	if logger == nil {
		logger = NewLogger()
	}
	return slog.New(&bridgeHandler{logger: logger})
}

// Enabled gates by the underlying logger's level.
func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= h.logger.GetLevel()
}

// Handle converts the slog record to fields and emits it at the mapped level.
func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, F(a.Key, a.Value.Any()))
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, F(h.qualify(a.Key), a.Value.Any()))
		return true
	})
	switch fromSlogLevel(r.Level) {
	case DebugLevel:
		h.logger.Debug(r.Message, fields...)
	case InfoLevel:
		h.logger.Info(r.Message, fields...)
	case WarnLevel:
		h.logger.Warn(r.Message, fields...)
	default:
		h.logger.Error(r.Message, fields...)
	}
	return nil
}

// WithAttrs returns a copy of the handler with additional base attributes.
// Keys are qualified with the group in effect when the attr is added.
func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	if len(attrs) > 0 {
		nh.attrs = append([]slog.Attr{}, h.attrs...)
		for _, a := range attrs {
			nh.attrs = append(nh.attrs, slog.Any(h.qualify(a.Key), a.Value.Any()))
		}
	}
	return &nh
}

// WithGroup returns a copy of the handler that prefixes attribute keys with
// the group name.
func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	nh := *h
	if name != "" {
		if nh.group != "" {
			nh.group += "."
		}
		nh.group += name
	}
	return &nh
}

func (h *bridgeHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

// toSlogLevel maps a Level to slog.Level.
func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// fromSlogLevel maps a slog.Level to a Level.
func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
