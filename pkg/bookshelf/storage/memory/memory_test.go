package memory_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/memory"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/s3"
)

func TestUploadDestroy(t *testing.T) {
	api := memory.New()
	ctx := context.Background()

	res, err := api.Upload(ctx, s3.UploadInput{Folder: "islamic_books/covers", FileName: "A.PNG", Body: bytes.NewReader([]byte("img"))})
	require.NoError(t, err)
	assert.Equal(t, "islamic_books/covers/obj000001.png", res.Key)
	assert.Equal(t, memory.DefaultBaseURL+"/islamic_books/covers/obj000001.png", res.SecureURL)

	info, err := api.Head(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, s3.ObjectInfo{Size: 3, ContentType: "application/octet-stream"}, info)

	result, err := api.Destroy(ctx, "islamic_books/covers/obj000001", s3.ResourceImage)
	require.NoError(t, err)
	assert.Equal(t, s3.DestroyOK, result)

	result, err = api.Destroy(ctx, "islamic_books/covers/obj000001", s3.ResourceImage)
	require.NoError(t, err)
	assert.Equal(t, s3.DestroyNotFound, result)

	assert.Empty(t, api.Keys())
	assert.Equal(t, []string{"islamic_books/covers/obj000001", "islamic_books/covers/obj000001"}, api.Destroyed())
}

func TestInjectedFailures(t *testing.T) {
	api := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	api.SetUploadError(boom)
	_, err := api.Upload(ctx, s3.UploadInput{Folder: "f", FileName: "a.pdf", Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, api.Keys())

	api.SetUploadError(nil)
	_, err = api.Upload(ctx, s3.UploadInput{Folder: "f", FileName: "a.pdf", Body: bytes.NewReader(nil)})
	require.NoError(t, err)

	api.SetDestroyError(boom)
	_, err = api.Destroy(ctx, "f/obj000001", s3.ResourceRaw)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, api.Keys(), 1)
}

func TestGetRange(t *testing.T) {
	api := memory.NewWithBaseURL("https://cdn.test/")
	ctx := context.Background()

	res, err := api.Upload(ctx, s3.UploadInput{Folder: "f", FileName: "a.pdf", Body: bytes.NewReader([]byte("0123456789"))})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/f/obj000001.pdf", res.SecureURL)

	body, err := api.GetRange(ctx, res.Key, 2, 3)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))

	body, err = api.GetRange(ctx, res.Key, 8, 100)
	require.NoError(t, err)
	data, err = io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "89", string(data))

	_, err = api.GetRange(ctx, "f/missing.pdf", 0, 1)
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
	_, err = api.Head(ctx, "f/missing.pdf")
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
}
