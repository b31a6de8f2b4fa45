package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when an operation names a task the board does not hold.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoScope is returned by mutations issued before any board was loaded.
	ErrNoScope = errors.New("board scope not loaded")
	// ErrInvalidTarget is returned when a move names an unknown column.
	ErrInvalidTarget = errors.New("invalid move target")
)

// ValidationError rejects input before any optimistic mutation is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError reports a failed board load. The board stays at its last known good state.
type FetchError struct {
	Scope string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load board %s: %v", e.Scope, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError reports a durable write that failed after the local state was updated.
// Reloaded is true when the board was resynchronized from the gateway afterwards.
type PersistenceError struct {
	Op       string
	TaskID   string
	Err      error
	Reloaded bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
