// Package scheme models coding schemes: per-variable rule sets that map raw
// response values to codes and scores.
//
// A scheme is parsed once from its JSON payload (regular expressions
// precompiled), then consulted per response through a Lookup table keyed by
// variable alias with id fallback. Unparseable payloads are represented by the
// Empty sentinel so a single bad scheme never aborts a batch.
package scheme
