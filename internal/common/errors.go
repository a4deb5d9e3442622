// Package common defines sentinel errors and error types shared by the
// storage, service and editor layers of the notebook. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrPersistence marks a write that could not be made durable.
	ErrPersistence = errors.New("persistence failure")

	// ErrTransientIO marks storage failures worth retrying.
	ErrTransientIO = errors.New("transient storage failure")

	// Validation errors.
	ErrorInvalidNote = errors.New("invalid note")
)

// PersistenceError is returned by the store when a save, delete or clear
// could not be completed. Its message is the one shown to the user.
type PersistenceError struct {
	Op       string
	Key      string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	subject := "note"
	if e.Key == "" {
		subject = "notes"
	}
	msg := fmt.Sprintf("failed to %s %s", e.Op, subject)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as matching, so callers need not know the type.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
