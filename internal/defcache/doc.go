// Package defcache provides the process-local, time-bounded caches for
// parsed coding schemes and raw test-definition files.
//
// Both caches load only the keys a batch is missing and merge them in, so a
// run over a small person set never reloads a workspace's full file set.
// State is process-local; the empty-scheme sentinel cached for unparseable
// payloads therefore never survives a restart.
package defcache
