// Package coder holds the response status enumeration and the pure coding
// executor that maps a raw value and input status to a coded outcome.
//
// The executor has no side effects and no hidden state; the batch coordinator
// owns all I/O around it.
package coder
