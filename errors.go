package main

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an item is not found in the store.
var ErrNotFound = errors.New("item not found")

// ErrInvalidInput is returned when the input payload is invalid.
// Every *ValidationError matches it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// ErrIDSpaceExhausted is returned by Create when the collection already holds
// the largest assignable id.
var ErrIDSpaceExhausted = errors.New("no item id left to assign")

// ErrConflict is returned when the store write lock cannot be acquired
// before the caller's deadline.
var ErrConflict = errors.New("store is locked by another writer")

// Validation error kinds.
const (
	KindMissingField = "missing_field"
	KindInvalidEnum  = "invalid_enum"
	KindInvalidRange = "invalid_range"
	KindInvalidField = "invalid_field"
	KindInvalidType  = "invalid_type"
	KindInvalidBody  = "invalid_body"
)

// ValidationError describes a rejected field in a create, replace or patch
// payload.
type ValidationError struct {
	Kind    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports ErrInvalidInput as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// CorruptStoreError is returned when a backing document cannot be decoded as
// a collection of items.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("corrupt store: %v", e.Err)
	}
	return fmt.Sprintf("corrupt store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}
