package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// DefaultRootFolder is the top-level folder every remote object lives under.
const DefaultRootFolder = "islamic_books"

// BackendConfig options for the remote backend
type BackendConfig struct {
	RootFolder string        // Top-level folder, default "islamic_books"
	Timeout    time.Duration // Per-call timeout, zero means none
}

// Backend is the remote implementation of bookshelf.BlobBackend. It keeps
// one folder per slot below the root folder.
type Backend struct {
	api        ObjectAPI
	rootFolder string
	timeout    time.Duration
}

// NewBackend creates a remote backend on top of an object API
func NewBackend(api ObjectAPI, config BackendConfig) (*Backend, error) {
	if api == nil {
		return nil, errors.New("object api is required")
	}
	root := config.RootFolder
	if root == "" {
		root = DefaultRootFolder
	}
	return &Backend{api: api, rootFolder: root, timeout: config.Timeout}, nil
}

func (b *Backend) Name() bookshelf.Backend { return bookshelf.BackendRemote }

// RootFolder returns the top-level folder name
func (b *Backend) RootFolder() string { return b.rootFolder }

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Store uploads into <root>/<slot folder> and returns the secure URL
func (b *Backend) Store(ctx context.Context, slot bookshelf.Slot, upload bookshelf.Upload) (bookshelf.Locator, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	result, err := b.api.Upload(ctx, UploadInput{
		Folder:      b.rootFolder + "/" + slot.Folder(),
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Body:        bytes.NewReader(upload.Data),
	})
	if err != nil {
		return bookshelf.Locator{}, err
	}
	if result.SecureURL == "" {
		return bookshelf.Locator{}, errors.New("object store returned no url")
	}

	return bookshelf.Locator{Backend: bookshelf.BackendRemote, Ref: result.SecureURL}, nil
}

// Remove destroys the object named by the locator URL. A URL that does not
// name an object under the root folder is reported as not found.
func (b *Backend) Remove(ctx context.Context, loc bookshelf.Locator) (bookshelf.RemoveResult, error) {
	ref, err := ParseObjectURL(loc.Ref, b.rootFolder)
	if err != nil {
		return bookshelf.RemoveNotFound, nil
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	result, err := b.api.Destroy(ctx, ref.PublicID, ref.ResourceType)
	if err != nil {
		return bookshelf.RemoveRemoteError, fmt.Errorf("destroy %s: %w", ref.PublicID, err)
	}
	if result == DestroyNotFound {
		return bookshelf.RemoveNotFound, nil
	}
	return bookshelf.RemoveRemoved, nil
}

// Stat returns size and content type of the remote object
func (b *Backend) Stat(ctx context.Context, loc bookshelf.Locator) (bookshelf.BlobInfo, error) {
	ref, err := ParseObjectURL(loc.Ref, b.rootFolder)
	if err != nil {
		return bookshelf.BlobInfo{}, err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	info, err := b.api.Head(ctx, ref.Key)
	if err != nil {
		return bookshelf.BlobInfo{}, err
	}
	return bookshelf.BlobInfo{Size: info.Size, ContentType: info.ContentType}, nil
}

// ReadRange streams part of the remote object. The timeout does not apply to
// reads since the body outlives this call.
func (b *Backend) ReadRange(ctx context.Context, loc bookshelf.Locator, offset, length int64) (io.ReadCloser, error) {
	ref, err := ParseObjectURL(loc.Ref, b.rootFolder)
	if err != nil {
		return nil, err
	}
	return b.api.GetRange(ctx, ref.Key, offset, length)
}
