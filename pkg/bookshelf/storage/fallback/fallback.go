// Package fallback implements bookshelf.AssetStore on top of a remote and a
// local backend. Stores go to the remote backend first and fall back to the
// local one on any failure; every other operation is dispatched on the
// backend recorded in the locator.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// Store is the dual-backend asset store
type Store struct {
	remote bookshelf.BlobBackend
	local  bookshelf.BlobBackend
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithRemote sets the preferred remote backend. Without it every blob is
// stored locally.
func WithRemote(remote bookshelf.BlobBackend) Option {
	return func(s *Store) {
		s.remote = remote
	}
}

// WithLogger sets the logger used for fallbacks and swallowed removal errors
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store with the given local backend
func New(local bookshelf.BlobBackend, options ...Option) (*Store, error) {
	if local == nil {
		return nil, errors.New("local backend is required")
	}
	s := &Store{local: local}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Store tries the remote backend and falls back to the local one. A
// successful remote store never falls back.
func (s *Store) Store(ctx context.Context, slot bookshelf.Slot, upload bookshelf.Upload) (bookshelf.Locator, error) {
	var remoteErr error
	if s.remote != nil {
		loc, err := s.remote.Store(ctx, slot, upload)
		if err == nil {
			return loc, nil
		}
		remoteErr = err
		s.logger.WarnContext(ctx, "Remote store failed, falling back to local storage",
			"slot", slot, "file_name", upload.FileName, "error", err)
	}

	loc, err := s.local.Store(ctx, slot, upload)
	if err != nil {
		s.logger.ErrorContext(ctx, "Local store failed", "slot", slot, "file_name", upload.FileName, "error", err)
		return bookshelf.Locator{}, &bookshelf.StorageError{
			Backend: bookshelf.BackendLocal,
			Ref:     upload.FileName,
			Op:      "store",
			Err:     errors.Join(bookshelf.ErrStorageUnavailable, remoteErr, err),
		}
	}
	return loc, nil
}

// Remove deletes the blob from the backend recorded in the locator. Errors are
// logged and reported through the result, never returned.
func (s *Store) Remove(ctx context.Context, loc bookshelf.Locator) bookshelf.RemoveResult {
	backend, err := s.backendFor(loc)
	if err != nil {
		s.logger.WarnContext(ctx, "Cannot remove asset", "backend", loc.Backend, "ref", loc.Ref, "error", err)
		if loc.Backend == bookshelf.BackendRemote {
			return bookshelf.RemoveRemoteError
		}
		return bookshelf.RemoveNotFound
	}

	result, err := backend.Remove(ctx, loc)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to remove asset", "backend", loc.Backend, "ref", loc.Ref,
			"result", result, "error", err)
		return result
	}
	s.logger.DebugContext(ctx, "Asset removed", "backend", loc.Backend, "ref", loc.Ref, "result", result)
	return result
}

// Stat returns blob information from the backend recorded in the locator
func (s *Store) Stat(ctx context.Context, loc bookshelf.Locator) (bookshelf.BlobInfo, error) {
	backend, err := s.backendFor(loc)
	if err != nil {
		return bookshelf.BlobInfo{}, err
	}
	return backend.Stat(ctx, loc)
}

// ReadRange reads from the backend recorded in the locator
func (s *Store) ReadRange(ctx context.Context, loc bookshelf.Locator, offset, length int64) (io.ReadCloser, error) {
	backend, err := s.backendFor(loc)
	if err != nil {
		return nil, err
	}
	return backend.ReadRange(ctx, loc, offset, length)
}

func (s *Store) backendFor(loc bookshelf.Locator) (bookshelf.BlobBackend, error) {
	switch loc.Backend {
	case bookshelf.BackendRemote:
		if s.remote == nil {
			return nil, fmt.Errorf("%w: remote backend not configured", bookshelf.ErrStorageUnavailable)
		}
		return s.remote, nil
	case bookshelf.BackendLocal:
		return s.local, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", bookshelf.ErrNotFound, loc.Backend)
	}
}
