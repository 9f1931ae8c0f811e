// Package logging wires log/slog for the coding engine.
//
// It provides console and JSON handlers, attribute aliases so call sites do
// not import slog directly, component loggers, and context-derived fields
// (workspace, job, stage) that keep batch output correlated.
package logging
