// Package batch orchestrates one automated coding run end to end: resolving
// the target population down to responses, filtering undeclared variables,
// resolving schemes through the definition caches, coding, and persisting the
// results. Runs are checkpointed: progress is reported at fixed percentages
// and a cancel check after every report can stop the run with its partial
// statistics, which is a valid outcome rather than a failure.
package batch
