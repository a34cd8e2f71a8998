package fallback_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fallback"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fs"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/memory"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/s3"
)

type fixture struct {
	store *fallback.Store
	api   *memory.API
	local *fs.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	local, err := fs.New(fs.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	api := memory.New()
	remote, err := s3.NewBackend(api, s3.BackendConfig{})
	require.NoError(t, err)

	store, err := fallback.New(local, fallback.WithRemote(remote))
	require.NoError(t, err)
	return &fixture{store: store, api: api, local: local}
}

var upload = bookshelf.Upload{FileName: "book.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}

func TestNewRequiresLocal(t *testing.T) {
	_, err := fallback.New(nil)
	assert.Error(t, err)
}

func TestStorePrefersRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loc, err := f.store.Store(ctx, bookshelf.SlotContent, upload)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.BackendRemote, loc.Backend)
	assert.True(t, strings.HasPrefix(loc.Ref, memory.DefaultBaseURL+"/islamic_books/pdfs/"), loc.Ref)

	assert.Equal(t, bookshelf.RemoveRemoved, f.store.Remove(ctx, loc))
	assert.Equal(t, bookshelf.RemoveNotFound, f.store.Remove(ctx, loc))
}

func TestStoreFallsBackToLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.SetUploadError(errors.New("remote down"))

	loc, err := f.store.Store(ctx, bookshelf.SlotContent, upload)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.BackendLocal, loc.Backend)
	assert.True(t, strings.HasPrefix(loc.Ref, "/uploads/pdfs/pdf-"), loc.Ref)

	info, err := f.store.Stat(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(upload.Data)), info.Size)

	assert.Equal(t, bookshelf.RemoveRemoved, f.store.Remove(ctx, loc))
	assert.Equal(t, bookshelf.RemoveNotFound, f.store.Remove(ctx, loc))
	assert.Empty(t, f.api.Destroyed(), "local locators never reach the remote store")
}

func TestStoreLocalOnly(t *testing.T) {
	local, err := fs.New(fs.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	store, err := fallback.New(local)
	require.NoError(t, err)
	ctx := context.Background()

	loc, err := store.Store(ctx, bookshelf.SlotCover, bookshelf.Upload{FileName: "c.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, bookshelf.BackendLocal, loc.Backend)

	remoteLoc := bookshelf.Locator{Backend: bookshelf.BackendRemote, Ref: "https://cdn.example.com/islamic_books/covers/a.png"}
	assert.Equal(t, bookshelf.RemoveRemoteError, store.Remove(ctx, remoteLoc))
	_, err = store.Stat(ctx, remoteLoc)
	assert.ErrorIs(t, err, bookshelf.ErrStorageUnavailable)
}

func TestRemoveRemoteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loc, err := f.store.Store(ctx, bookshelf.SlotCover, bookshelf.Upload{FileName: "c.png", Data: []byte("x")})
	require.NoError(t, err)

	f.api.SetDestroyError(errors.New("timeout"))
	assert.Equal(t, bookshelf.RemoveRemoteError, f.store.Remove(ctx, loc))
	assert.Len(t, f.api.Keys(), 1)
}

func TestRemoveUnknownBackend(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, bookshelf.RemoveNotFound, f.store.Remove(context.Background(), bookshelf.Locator{Backend: "ftp", Ref: "x"}))
	assert.Equal(t, bookshelf.RemoveNotFound, f.store.Remove(context.Background(), bookshelf.Locator{}))
}

func TestStoreBothBackendsFail(t *testing.T) {
	f := newFixture(t)
	f.api.SetUploadError(errors.New("remote down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.store.Store(ctx, bookshelf.SlotCover, upload)
	assert.ErrorIs(t, err, bookshelf.ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	var storageErr *bookshelf.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "store", storageErr.Op)
}
