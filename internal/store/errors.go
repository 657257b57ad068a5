// Package store holds the error values shared by record store backends.
package store

import "errors"

var (
	// ErrDuplicateKey reports a write that violated a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound reports a write against a record that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStale reports a conditional write whose record changed since it was read.
	ErrStale = errors.New("record changed concurrently")
)
