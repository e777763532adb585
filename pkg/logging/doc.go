// Package logging provides subsystem-tagged structured logging for
// tokensession, built on Go's standard slog package.
//
// # Log Levels
//   - Debug: state transitions, job scheduling, timer arming
//   - Info: login, logout, token refresh outcomes
//   - Warn: recoverable problems such as storage write failures
//   - Error: failed refreshes and other operation failures
//
// Every entry carries a "subsystem" attribute. Token values are never passed
// to the logger; only endpoints, usernames, expiries and status codes are.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
//	logging.Error("CLI", err, "Login failed for %s", username)
//
//	// Structured logger for a library component
//	logger := logging.For("authn").With("endpoint", endpoint)
//
// InitForCLI and InitForJSON also install the logger as slog.Default(), so
// packages that only take a *slog.Logger option pick up the same handler.
package logging
