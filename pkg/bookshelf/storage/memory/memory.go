package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/s3"
)

// DefaultBaseURL is the URL prefix of objects handed out by the in-memory store.
const DefaultBaseURL = "https://objects.memory.local"

// API is an in-memory implementation of the s3.ObjectAPI interface. Upload
// and destroy failures can be injected to exercise fallback paths.
type API struct {
	mu         sync.RWMutex
	baseURL    string
	objects    map[string][]byte
	mimeTypes  map[string]string
	seq        int
	uploadErr  error
	destroyErr error
	destroyed  []string
}

// New creates a new in-memory object store
func New() *API {
	return NewWithBaseURL(DefaultBaseURL)
}

// NewWithBaseURL creates an in-memory object store handing out URLs under baseURL
func NewWithBaseURL(baseURL string) *API {
	return &API{
		baseURL:   strings.TrimRight(baseURL, "/"),
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
	}
}

// SetUploadError makes every following upload fail with err (nil clears it)
func (a *API) SetUploadError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploadErr = err
}

// SetDestroyError makes every following destroy fail with err (nil clears it)
func (a *API) SetDestroyError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyErr = err
}

// Destroyed returns the public ids passed to Destroy, in call order
func (a *API) Destroyed() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.destroyed...)
}

// Keys returns the stored object keys, sorted
func (a *API) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Upload stores the body under <folder>/obj<seq><ext>
func (a *API) Upload(ctx context.Context, in s3.UploadInput) (s3.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return s3.UploadResult{}, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return s3.UploadResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.uploadErr != nil {
		return s3.UploadResult{}, a.uploadErr
	}

	a.seq++
	key := path.Join(in.Folder, fmt.Sprintf("obj%06d%s", a.seq, strings.ToLower(filepath.Ext(in.FileName))))
	a.objects[key] = data
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	a.mimeTypes[key] = contentType

	return s3.UploadResult{SecureURL: a.baseURL + "/" + key, Key: key}, nil
}

// Destroy removes every object named by publicID
func (a *API) Destroy(ctx context.Context, publicID string, resourceType s3.ResourceType) (s3.DestroyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.destroyed = append(a.destroyed, publicID)
	if a.destroyErr != nil {
		return "", a.destroyErr
	}

	deleted := 0
	for key := range a.objects {
		if s3.MatchesPublicID(key, publicID) {
			delete(a.objects, key)
			delete(a.mimeTypes, key)
			deleted++
		}
	}
	if deleted == 0 {
		return s3.DestroyNotFound, nil
	}
	return s3.DestroyOK, nil
}

// Head returns size and content type of an object
func (a *API) Head(ctx context.Context, key string) (s3.ObjectInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, exists := a.objects[key]
	if !exists {
		return s3.ObjectInfo{}, fmt.Errorf("%w: %s", bookshelf.ErrNotFound, key)
	}
	return s3.ObjectInfo{Size: int64(len(data)), ContentType: a.mimeTypes[key]}, nil
}

// GetRange returns a copy of length bytes starting at offset
func (a *API) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, exists := a.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", bookshelf.ErrNotFound, key)
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	end := min(offset+length, int64(len(data)))

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return io.NopCloser(bytes.NewReader(chunk)), nil
}
