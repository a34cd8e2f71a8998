package bookshelf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxUploadSize is the per-file size limit applied to submissions.
const DefaultMaxUploadSize = 10 << 20

// service implements the Service interface
type service struct {
	repository    Repository
	assets        AssetStore
	eventSink     EventSink
	logger        *slog.Logger
	maxUploadSize int64
	checkMedia    bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithAssetStore sets the asset store for covers and PDFs
func WithAssetStore(store AssetStore) Option {
	return func(s *service) {
		s.assets = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxUploadSize sets the per-file size limit in bytes
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxUploadSize = n
	}
}

// WithMediaValidation toggles media type sniffing of uploads (default on)
func WithMediaValidation(enabled bool) Option {
	return func(s *service) {
		s.checkMedia = enabled
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:     NewNoopEventSink(),
		maxUploadSize: DefaultMaxUploadSize,
		checkMedia:    true,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.assets == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Submission

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*Book, error) {
	decision, err := Decide("", ActionSubmit, req.Actor.Role, true)
	if err != nil {
		return nil, &BookError{Op: "submit", Err: err}
	}
	if err := s.validateSubmit(req); err != nil {
		return nil, &BookError{Op: "submit", Err: err}
	}

	cover, err := s.assets.Store(ctx, SlotCover, req.Cover)
	if err != nil {
		return nil, &BookError{Op: "submit", Err: err}
	}
	content, err := s.assets.Store(ctx, SlotContent, req.Content)
	if err != nil {
		s.orphaned(ctx, cover, err)
		return nil, &BookError{Op: "submit", Err: err}
	}

	now := time.Now().UTC()
	book := &Book{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
		Cover:       cover,
		Content:     content,
		OwnerID:     req.Actor.ID,
		Status:      decision.To,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateBook(ctx, book); err != nil {
		s.orphaned(ctx, cover, err)
		s.orphaned(ctx, content, err)
		return nil, &BookError{BookID: book.ID, Op: "submit", Err: err}
	}

	s.logger.InfoContext(ctx, "Book submitted", "book_id", book.ID, "owner_id", book.OwnerID,
		"status", book.Status, "cover_backend", cover.Backend, "content_backend", content.Backend)
	if err := s.eventSink.BookSubmitted(ctx, book); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "book_submitted", "book_id", book.ID, "error", err)
	}

	return book, nil
}

func (s *service) validateSubmit(req SubmitRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(req.Author) == "" {
		return validationError("author is required")
	}
	if len(req.Cover.Data) == 0 || len(req.Content.Data) == 0 {
		return validationError("cover and PDF files are required")
	}
	if s.maxUploadSize > 0 {
		if int64(len(req.Cover.Data)) > s.maxUploadSize || int64(len(req.Content.Data)) > s.maxUploadSize {
			return validationError("files must not exceed %d bytes", s.maxUploadSize)
		}
	}
	if !s.checkMedia {
		return nil
	}
	if m := mimetype.Detect(req.Cover.Data); !strings.HasPrefix(m.String(), "image/") {
		return validationError("cover must be an image (got %s)", m.String())
	}
	if m := mimetype.Detect(req.Content.Data); !m.Is("application/pdf") {
		return validationError("content must be a PDF (got %s)", m.String())
	}
	return nil
}

func (s *service) orphaned(ctx context.Context, loc Locator, reason error) {
	s.logger.WarnContext(ctx, "Stored asset left without a record", "backend", loc.Backend, "ref", loc.Ref, "error", reason)
	if err := s.eventSink.AssetOrphaned(ctx, loc, reason); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "asset_orphaned", "ref", loc.Ref, "error", err)
	}
}

// Moderation transitions

func (s *service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error) {
	return s.transition(ctx, id, actor, ActionApprove)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error) {
	return s.transition(ctx, id, actor, ActionReject)
}

func (s *service) RequestDelete(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error) {
	return s.transition(ctx, id, actor, ActionRequestDelete)
}

func (s *service) RejectDelete(ctx context.Context, id uuid.UUID, actor Actor) (*Book, error) {
	return s.transition(ctx, id, actor, ActionRejectDelete)
}

func (s *service) ApproveDelete(ctx context.Context, id uuid.UUID, actor Actor) (*DeleteReport, error) {
	return s.purge(ctx, id, actor, ActionApproveDelete)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID, actor Actor) (*DeleteReport, error) {
	return s.purge(ctx, id, actor, ActionDelete)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, actor Actor, action Action) (*Book, error) {
	op := string(action)
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	decision, err := Decide(book.Status, action, actor.Role, book.OwnerID == actor.ID)
	if err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	updated, err := s.repository.UpdateBookStatus(ctx, id, decision.From, decision.To)
	if err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	s.logger.InfoContext(ctx, "Book status changed", "book_id", id, "action", action,
		"actor_id", actor.ID, "from", decision.From, "to", decision.To)
	if err := s.eventSink.BookStatusChanged(ctx, updated, decision.From); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "book_status_changed", "book_id", id, "error", err)
	}

	return updated, nil
}

// purge removes both assets and then the record. Asset removal is best
// effort; the record is deleted regardless of the individual results.
func (s *service) purge(ctx context.Context, id uuid.UUID, actor Actor, action Action) (*DeleteReport, error) {
	op := string(action)
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	if _, err := Decide(book.Status, action, actor.Role, book.OwnerID == actor.ID); err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	report := &DeleteReport{BookID: id}
	report.Cover = s.assets.Remove(ctx, book.Cover)
	report.Content = s.assets.Remove(ctx, book.Content)

	if err := s.repository.DeleteBook(ctx, id); err != nil {
		return nil, &BookError{BookID: id, Op: op, Err: err}
	}

	s.logger.InfoContext(ctx, "Book deleted", "book_id", id, "action", action, "actor_id", actor.ID,
		"cover", report.Cover, "content", report.Content)
	if err := s.eventSink.BookDeleted(ctx, *report); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "book_deleted", "book_id", id, "error", err)
	}

	return report, nil
}

// Queries

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return nil, &BookError{BookID: id, Op: "get", Err: err}
	}
	return book, nil
}

func (s *service) ListApproved(ctx context.Context, req ListApprovedRequest) ([]*Book, error) {
	return s.repository.ListBooks(ctx, BookQuery{
		Status:   StatusApproved,
		Category: strings.TrimSpace(req.Category),
		Search:   strings.TrimSpace(req.Search),
	})
}

func (s *service) ListPending(ctx context.Context) ([]*Book, error) {
	return s.repository.ListBooks(ctx, BookQuery{Status: StatusPending})
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Book, error) {
	if ownerID == uuid.Nil {
		return nil, validationError("owner id is required")
	}
	return s.repository.ListBooks(ctx, BookQuery{OwnerID: ownerID})
}

func (s *service) ListDeleteRequested(ctx context.Context) ([]*Book, error) {
	return s.repository.ListBooks(ctx, BookQuery{Status: StatusDeleteRequested})
}

func (s *service) ModerationCounts(ctx context.Context) (*ModerationCounts, error) {
	pending, err := s.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	deleteRequested, err := s.ListDeleteRequested(ctx)
	if err != nil {
		return nil, err
	}
	return &ModerationCounts{
		Pending:         len(pending),
		DeleteRequested: len(deleteRequested),
		Total:           len(pending) + len(deleteRequested),
	}, nil
}
