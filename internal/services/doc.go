// Package services defines shared utilities consumed across the coding
// engine.
//
// Key responsibilities:
//   - Context helpers that stamp workspace IDs, job IDs, and batch stage names
//     for logging.
//   - Structured error markers plus the Wrap helper that keep failure messages
//     uniform across batch stages and persistence.
package services
