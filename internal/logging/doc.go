// Package logging provides structured logging utilities for calendarchat.
//
// It centralizes attribute naming and PII handling on top of log/slog.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "registry.upsert")
//	logger.Info("connection stored",
//	    logging.UserHash(email),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
// User emails are hashed before they reach log output, and OAuth tokens are
// reduced to a length marker by SanitizeToken.
package logging
