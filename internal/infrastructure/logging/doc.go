// Package logging provides structured logging for Netwatch Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("poll cycle complete", "devices", 12)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Attributes whose key contains "password", "secret" or "token" are
// replaced with [REDACTED] by the handler. Prefer not logging them at all:
//
//	logger.Info("router login", "user", cfg.RemoteUser) // never cfg.RemoteSecret
package logging
