package bookshelf

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates missing or malformed input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown book or blob
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the actor's role or ownership does not permit the action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition indicates the action is not legal from the current status
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStorageUnavailable indicates neither storage backend accepted a blob
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidStatus indicates an unknown status string
	ErrInvalidStatus = errors.New("invalid book status")
)

// BookError represents an error related to a book operation
type BookError struct {
	BookID uuid.UUID
	Op     string
	Err    error
}

func (e *BookError) Error() string {
	if e.BookID == uuid.Nil {
		return fmt.Sprintf("book operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("book operation %s failed for book %s: %v", e.Op, e.BookID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend Backend
	Ref     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %s on backend %s: %v", e.Op, e.Ref, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
