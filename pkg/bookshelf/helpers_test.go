package bookshelf_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	repomemory "github.com/tendant/simple-bookshelf/pkg/bookshelf/repo/memory"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fallback"
	fsstorage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fs"
	memorystorage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/memory"
	s3storage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/s3"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
)

type testEnv struct {
	service bookshelf.Service
	repo    *repomemory.Repository
	api     *memorystorage.API
	local   *fsstorage.Backend
	assets  *fallback.Store
	events  *recordingSink

	admin  bookshelf.Actor
	writer bookshelf.Actor
	other  bookshelf.Actor
	reader bookshelf.Actor
}

func newTestEnv(t *testing.T, options ...bookshelf.Option) *testEnv {
	t.Helper()

	local, err := fsstorage.New(fsstorage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	api := memorystorage.New()
	remote, err := s3storage.NewBackend(api, s3storage.BackendConfig{})
	require.NoError(t, err)

	assets, err := fallback.New(local, fallback.WithRemote(remote))
	require.NoError(t, err)

	env := &testEnv{
		repo:   repomemory.New(),
		api:    api,
		local:  local,
		assets: assets,
		events: &recordingSink{},
		admin:  bookshelf.Actor{ID: uuid.New(), Role: bookshelf.RoleAdmin},
		writer: bookshelf.Actor{ID: uuid.New(), Role: bookshelf.RoleWriter},
		other:  bookshelf.Actor{ID: uuid.New(), Role: bookshelf.RoleWriter},
		reader: bookshelf.Actor{ID: uuid.New(), Role: bookshelf.RoleReader},
	}

	opts := append([]bookshelf.Option{
		bookshelf.WithRepository(env.repo),
		bookshelf.WithAssetStore(env.assets),
		bookshelf.WithEventSink(env.events),
	}, options...)
	env.service, err = bookshelf.New(opts...)
	require.NoError(t, err)

	return env
}

func submitRequest(actor bookshelf.Actor, title string) bookshelf.SubmitRequest {
	return bookshelf.SubmitRequest{
		Actor:       actor,
		Title:       title,
		Author:      "Ibn Kathir",
		Category:    "Tafsir",
		Description: "Classical exegesis of the Quran",
		Cover:       bookshelf.Upload{FileName: "cover.png", ContentType: "image/png", Data: pngData},
		Content:     bookshelf.Upload{FileName: "book.pdf", ContentType: "application/pdf", Data: pdfData},
	}
}

func (e *testEnv) submit(t *testing.T, actor bookshelf.Actor, title string) *bookshelf.Book {
	t.Helper()
	book, err := e.service.Submit(context.Background(), submitRequest(actor, title))
	require.NoError(t, err)
	return book
}

// approved submits a book as the env writer and approves it
func (e *testEnv) approved(t *testing.T, title string) *bookshelf.Book {
	t.Helper()
	book := e.submit(t, e.writer, title)
	book, err := e.service.Approve(context.Background(), book.ID, e.admin)
	require.NoError(t, err)
	return book
}

// recordingSink records every event it receives
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	orphaned []bookshelf.Locator
	deleted  []bookshelf.DeleteReport
}

func (s *recordingSink) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) BookSubmitted(ctx context.Context, book *bookshelf.Book) error {
	s.record("submitted:" + string(book.Status))
	return nil
}

func (s *recordingSink) BookStatusChanged(ctx context.Context, book *bookshelf.Book, from bookshelf.Status) error {
	s.record(string(from) + "->" + string(book.Status))
	return nil
}

func (s *recordingSink) BookDeleted(ctx context.Context, report bookshelf.DeleteReport) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, report)
	s.mu.Unlock()
	s.record("deleted")
	return nil
}

func (s *recordingSink) AssetOrphaned(ctx context.Context, loc bookshelf.Locator, reason error) error {
	s.mu.Lock()
	s.orphaned = append(s.orphaned, loc)
	s.mu.Unlock()
	s.record("orphaned")
	return nil
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// slotFailingStore wraps an AssetStore and fails every store into one slot
type slotFailingStore struct {
	bookshelf.AssetStore
	slot bookshelf.Slot
}

var errDiskFull = errors.New("disk full")

func (s *slotFailingStore) Store(ctx context.Context, slot bookshelf.Slot, upload bookshelf.Upload) (bookshelf.Locator, error) {
	if slot == s.slot {
		return bookshelf.Locator{}, &bookshelf.StorageError{
			Backend: bookshelf.BackendLocal,
			Ref:     upload.FileName,
			Op:      "store",
			Err:     errors.Join(bookshelf.ErrStorageUnavailable, errDiskFull),
		}
	}
	return s.AssetStore.Store(ctx, slot, upload)
}
