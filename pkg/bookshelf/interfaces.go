package bookshelf

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// AssetStore stores and removes the binary assets of a book. Implementations
// decide which backend holds a blob and record it in the returned Locator.
type AssetStore interface {
	// Store persists the upload under the given slot
	Store(ctx context.Context, slot Slot, upload Upload) (Locator, error)

	// Remove deletes the blob. It never fails: backend errors are logged and
	// reported through the result.
	Remove(ctx context.Context, loc Locator) RemoveResult

	// Stat returns size and media type, ErrNotFound if the blob is absent
	Stat(ctx context.Context, loc Locator) (BlobInfo, error)

	// ReadRange opens length bytes of the blob starting at offset
	ReadRange(ctx context.Context, loc Locator, offset, length int64) (io.ReadCloser, error)
}

// BlobBackend is a single storage backend behind an AssetStore.
type BlobBackend interface {
	// Name returns the backend tag written into locators
	Name() Backend

	Store(ctx context.Context, slot Slot, upload Upload) (Locator, error)

	// Remove returns RemoveNotFound with a nil error when the blob is already gone
	Remove(ctx context.Context, loc Locator) (RemoveResult, error)

	Stat(ctx context.Context, loc Locator) (BlobInfo, error)

	ReadRange(ctx context.Context, loc Locator, offset, length int64) (io.ReadCloser, error)
}

// Repository defines book record persistence
type Repository interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)

	// UpdateBookStatus moves a book from expected to next only if its stored
	// status still equals expected. A mismatch returns ErrInvalidTransition.
	UpdateBookStatus(ctx context.Context, id uuid.UUID, expected, next Status) (*Book, error)

	DeleteBook(ctx context.Context, id uuid.UUID) error

	// ListBooks returns matching books, newest first
	ListBooks(ctx context.Context, q BookQuery) ([]*Book, error)
}

// EventSink receives lifecycle notifications. Errors are logged by the
// service and never fail the operation.
type EventSink interface {
	// BookSubmitted is fired after a new record is persisted
	BookSubmitted(ctx context.Context, book *Book) error

	// BookStatusChanged is fired after a status transition is written
	BookStatusChanged(ctx context.Context, book *Book, from Status) error

	// BookDeleted is fired after a record is purged
	BookDeleted(ctx context.Context, report DeleteReport) error

	// AssetOrphaned is fired when a stored blob is left without a record
	AssetOrphaned(ctx context.Context, loc Locator, reason error) error
}
