// Package log provides structured logging for turnstile components.
//
// Loggers are constructed explicitly and passed via dependency injection;
// there is no package-level default. A logger carries a set of fields that
// are attached to every entry, plus a formatter and one or more outputs.
//
// Example:
//
//	logger := log.NewLogger(log.WithLevel(log.InfoLevel))
//	logger = logger.With(log.Component("gates"))
//	logger.Info("gate opened", log.Str("gate", name))
package log
