// Package logging assembles the structured slog loggers used across vidash.
//
// It owns the console (tint) and JSON handlers, centralizes level and output
// plumbing, and defines the standard attribute keys so the sync channel,
// write-back lanes and media resolver emit records with the same shape. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
