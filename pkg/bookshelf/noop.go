package bookshelf

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) BookSubmitted(ctx context.Context, book *Book) error { return nil }

func (n *NoopEventSink) BookStatusChanged(ctx context.Context, book *Book, from Status) error {
	return nil
}

func (n *NoopEventSink) BookDeleted(ctx context.Context, report DeleteReport) error { return nil }

func (n *NoopEventSink) AssetOrphaned(ctx context.Context, loc Locator, reason error) error {
	return nil
}

// LoggingEventSink logs events but takes no other action.
// Useful for development and for collecting orphaned assets from logs.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) BookSubmitted(ctx context.Context, book *Book) error {
	l.logger.InfoContext(ctx, "Book submitted", "book_id", book.ID, "owner_id", book.OwnerID, "status", book.Status)
	return nil
}

func (l *LoggingEventSink) BookStatusChanged(ctx context.Context, book *Book, from Status) error {
	l.logger.InfoContext(ctx, "Book status changed", "book_id", book.ID, "from", from, "to", book.Status)
	return nil
}

func (l *LoggingEventSink) BookDeleted(ctx context.Context, report DeleteReport) error {
	l.logger.InfoContext(ctx, "Book deleted", "book_id", report.BookID, "cover", report.Cover, "content", report.Content)
	return nil
}

func (l *LoggingEventSink) AssetOrphaned(ctx context.Context, loc Locator, reason error) error {
	l.logger.WarnContext(ctx, "Asset orphaned", "backend", loc.Backend, "ref", loc.Ref, "reason", reason)
	return nil
}
