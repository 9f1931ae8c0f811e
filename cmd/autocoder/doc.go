// Package main hosts the autocoder CLI entrypoint and command graph.
//
// The Cobra-based command tree enqueues and manages coding jobs, uploads
// workspace definition files, computes agreement statistics, and scaffolds
// configuration. It centralizes configuration resolution and store access so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
