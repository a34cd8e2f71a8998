package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fs"
)

func newBackend(t *testing.T) *fs.Backend {
	t.Helper()
	backend, err := fs.New(fs.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return backend
}

func TestNewCreatesSlotFolders(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)

	backend := newBackend(t)
	for _, folder := range []string{"covers", "pdfs"} {
		info, err := os.Stat(filepath.Join(backend.BaseDir(), folder))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, bookshelf.BackendLocal, backend.Name())
}

func TestStoreNamesFiles(t *testing.T) {
	tests := []struct {
		name     string
		slot     bookshelf.Slot
		fileName string
		pattern  string
	}{
		{"cover", bookshelf.SlotCover, "Front.JPG", `^/uploads/covers/cover-\d+-\d+\.jpg$`},
		{"pdf", bookshelf.SlotContent, "book.pdf", `^/uploads/pdfs/pdf-\d+-\d+\.pdf$`},
		{"no extension", bookshelf.SlotContent, "book", `^/uploads/pdfs/pdf-\d+-\d+$`},
		{"suspicious extension", bookshelf.SlotCover, "a.p/../ng", `^/uploads/covers/cover-\d+-\d+$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newBackend(t)
			loc, err := backend.Store(context.Background(), tt.slot, bookshelf.Upload{FileName: tt.fileName, Data: []byte("data")})
			require.NoError(t, err)
			assert.Equal(t, bookshelf.BackendLocal, loc.Backend)
			assert.Regexp(t, regexp.MustCompile(tt.pattern), loc.Ref)

			path, err := backend.Resolve(loc.Ref)
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []byte("data"), data)
		})
	}
}

func TestStoreCustomPrefix(t *testing.T) {
	backend, err := fs.New(fs.Config{BaseDir: t.TempDir(), URLPrefix: "files/"})
	require.NoError(t, err)

	loc, err := backend.Store(context.Background(), bookshelf.SlotCover, bookshelf.Upload{FileName: "c.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.Regexp(t, `^/files/covers/cover-`, loc.Ref)
}

func TestRemoveTwice(t *testing.T) {
	backend := newBackend(t)
	ctx := context.Background()

	loc, err := backend.Store(ctx, bookshelf.SlotContent, bookshelf.Upload{FileName: "b.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	result, err := backend.Remove(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.RemoveRemoved, result)

	result, err = backend.Remove(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.RemoveNotFound, result)
}

func TestResolveRejectsTraversal(t *testing.T) {
	backend := newBackend(t)

	outside := filepath.Join(filepath.Dir(backend.BaseDir()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))

	for _, ref := range []string{
		"/uploads/../secret.txt",
		"/uploads/pdfs/../../secret.txt",
		"/elsewhere/pdfs/a.pdf",
		"/uploads/",
		"",
	} {
		_, err := backend.Resolve(ref)
		assert.ErrorIs(t, err, bookshelf.ErrNotFound, ref)

		result, err := backend.Remove(context.Background(), bookshelf.Locator{Backend: bookshelf.BackendLocal, Ref: ref})
		assert.NoError(t, err)
		assert.Equal(t, bookshelf.RemoveNotFound, result, ref)
	}

	_, err := os.Stat(outside)
	assert.NoError(t, err, "files outside the base directory must survive")
}

func TestStatAndReadRange(t *testing.T) {
	backend := newBackend(t)
	ctx := context.Background()
	data := []byte("%PDF-1.4\nhello world\n")

	loc, err := backend.Store(ctx, bookshelf.SlotContent, bookshelf.Upload{FileName: "b.pdf", Data: data})
	require.NoError(t, err)

	info, err := backend.Stat(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)

	body, err := backend.ReadRange(ctx, loc, 9, 5)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	missing := bookshelf.Locator{Backend: bookshelf.BackendLocal, Ref: "/uploads/pdfs/pdf-0-0.pdf"}
	_, err = backend.Stat(ctx, missing)
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
	_, err = backend.ReadRange(ctx, missing, 0, 1)
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
}
