package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// ResourceType classifies remote objects the way the object store's destroy
// call expects: images have extension-less public ids, raw files are PDFs.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceRaw   ResourceType = "raw"
)

// DestroyResult is the object store's answer to a destroy call.
type DestroyResult string

const (
	DestroyOK       DestroyResult = "ok"
	DestroyNotFound DestroyResult = "not found"
)

// UploadInput describes a blob to upload into a folder.
type UploadInput struct {
	Folder      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadResult is returned by a successful upload.
type UploadResult struct {
	SecureURL string
	Key       string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectAPI is the remote object store used by Backend. It is fallible and
// non-transactional.
type ObjectAPI interface {
	Upload(ctx context.Context, in UploadInput) (UploadResult, error)
	Destroy(ctx context.Context, publicID string, resourceType ResourceType) (DestroyResult, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
}

// ObjectRef is a secure URL decomposed relative to the root folder.
type ObjectRef struct {
	// Key is the object key including its extension
	Key string
	// PublicID is the key without the file extension
	PublicID     string
	ResourceType ResourceType
}

// ParseObjectURL locates the root folder segment in the URL path and derives
// the object key and public id from it. The root folder must be followed by a
// slot folder so a bucket or host segment with the same name is skipped.
func ParseObjectURL(ref, rootFolder string) (ObjectRef, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("%w: invalid object url %q", bookshelf.ErrNotFound, ref)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	start := -1
	for i := 0; i+2 < len(segments); i++ {
		if segments[i] == rootFolder && isSlotFolder(segments[i+1]) {
			start = i
			break
		}
	}
	if start < 0 {
		return ObjectRef{}, fmt.Errorf("%w: %q has no %s/ segment", bookshelf.ErrNotFound, ref, rootFolder)
	}

	key := strings.Join(segments[start:], "/")
	resourceType := ResourceImage
	if segments[start+1] == bookshelf.SlotContent.Folder() {
		resourceType = ResourceRaw
	}

	return ObjectRef{
		Key:          key,
		PublicID:     strings.TrimSuffix(key, path.Ext(key)),
		ResourceType: resourceType,
	}, nil
}

func isSlotFolder(s string) bool {
	return s == bookshelf.SlotCover.Folder() || s == bookshelf.SlotContent.Folder()
}

// MatchesPublicID reports whether key is the object named by publicID, with or
// without a file extension.
func MatchesPublicID(key, publicID string) bool {
	if key == publicID {
		return true
	}
	rest, ok := strings.CutPrefix(key, publicID)
	return ok && strings.HasPrefix(rest, ".") && !strings.Contains(rest, "/")
}
