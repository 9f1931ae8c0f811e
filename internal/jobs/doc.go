// Package jobs provides the persistent coding-job queue and the background
// worker that drains it. Jobs carry a batch spec, move through
// waiting/active/delayed/paused/completed/failed states, and expose a pause
// flag the batch coordinator polls as its cancellation predicate.
package jobs
