// Package store persists the response population in SQLite and exposes the
// reads the batch coordinator fans out over: persons, booklets, units,
// responses, plus the registries of uploaded test-definition files and coding
// schemes.
//
// The engine only ever mutates responses, and only through
// PersistCodedResponses, which applies one autocoder run's results to the
// run-specific result slot inside a single chunked transaction. Schema
// changes bump the version in store.go.
package store
