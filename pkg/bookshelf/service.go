package bookshelf

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the moderation operations of the bookshelf library
type Service interface {
	// Submission
	Submit(ctx context.Context, req SubmitRequest) (*Book, error)

	// Moderation transitions
	Approve(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error)
	Reject(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error)
	RequestDelete(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error)
	ApproveDelete(ctx context.Context, id uuid.UUID, actor Actor) (*DeleteReport, error)
	RejectDelete(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error)

	// Delete removes a book directly, without the request/approve step
	Delete(ctx context.Context, id uuid.UUID, actor Actor) (*DeleteReport, error)

	// Queries
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListApproved(ctx context.Context, req ListApprovedRequest) ([]*Book, error)
	ListPending(ctx context.Context) ([]*Book, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Book, error)
	ListDeleteRequested(ctx context.Context) ([]*Book, error)

	// ModerationCounts summarises outstanding admin work
	ModerationCounts(ctx context.Context) (*ModerationCounts, error)
}
