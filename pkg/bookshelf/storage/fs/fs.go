package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// DefaultURLPrefix is the path prefix written into local locators.
const DefaultURLPrefix = "/uploads"

// Backend is a filesystem implementation of the bookshelf.BlobBackend interface
type Backend struct {
	baseDir   string
	urlPrefix string
	now       func() time.Time
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory holding the covers/ and pdfs/ folders
	URLPrefix string // Prefix of the relative path stored in locators (default "/uploads")
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	for _, slot := range []bookshelf.Slot{bookshelf.SlotCover, bookshelf.SlotContent} {
		if err := os.MkdirAll(filepath.Join(baseDir, slot.Folder()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	prefix := config.URLPrefix
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	return &Backend{
		baseDir:   baseDir,
		urlPrefix: prefix,
		now:       time.Now,
	}, nil
}

func (b *Backend) Name() bookshelf.Backend { return bookshelf.BackendLocal }

// BaseDir returns the absolute directory files are written under.
func (b *Backend) BaseDir() string { return b.baseDir }

// Store writes the upload as <field>-<unix millis>-<random><ext> inside the
// slot folder and returns a locator relative to the URL prefix.
func (b *Backend) Store(ctx context.Context, slot bookshelf.Slot, upload bookshelf.Upload) (bookshelf.Locator, error) {
	if err := ctx.Err(); err != nil {
		return bookshelf.Locator{}, err
	}

	name := fmt.Sprintf("%s-%d-%d%s", slot.FieldName(), b.now().UnixMilli(), rand.Int64N(1e9), extension(upload.FileName))
	filePath := filepath.Join(b.baseDir, slot.Folder(), name)

	// O_EXCL so a suffix collision never overwrites another book's file
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return bookshelf.Locator{}, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := file.Write(upload.Data); err != nil {
		file.Close()
		os.Remove(filePath)
		return bookshelf.Locator{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return bookshelf.Locator{}, fmt.Errorf("failed to close file: %w", err)
	}

	return bookshelf.Locator{
		Backend: bookshelf.BackendLocal,
		Ref:     path.Join(b.urlPrefix, slot.Folder(), name),
	}, nil
}

// Remove deletes the file behind the locator. A missing file, or a reference
// that does not resolve inside the base directory, is reported as not found.
func (b *Backend) Remove(ctx context.Context, loc bookshelf.Locator) (bookshelf.RemoveResult, error) {
	filePath, err := b.Resolve(loc.Ref)
	if err != nil {
		return bookshelf.RemoveNotFound, nil
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return bookshelf.RemoveNotFound, nil
		}
		return bookshelf.RemoveFailed, fmt.Errorf("failed to delete file: %w", err)
	}
	return bookshelf.RemoveRemoved, nil
}

// Stat returns the size and sniffed media type of the file
func (b *Backend) Stat(ctx context.Context, loc bookshelf.Locator) (bookshelf.BlobInfo, error) {
	filePath, err := b.Resolve(loc.Ref)
	if err != nil {
		return bookshelf.BlobInfo{}, err
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return bookshelf.BlobInfo{}, fmt.Errorf("%w: %s", bookshelf.ErrNotFound, loc.Ref)
	} else if err != nil {
		return bookshelf.BlobInfo{}, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		return bookshelf.BlobInfo{}, fmt.Errorf("%w: %s", bookshelf.ErrNotFound, loc.Ref)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(filePath); err == nil {
		contentType = m.String()
	}

	return bookshelf.BlobInfo{Size: info.Size(), ContentType: contentType}, nil
}

// ReadRange opens the file positioned at offset, limited to length bytes
func (b *Backend) ReadRange(ctx context.Context, loc bookshelf.Locator, offset, length int64) (io.ReadCloser, error) {
	filePath, err := b.Resolve(loc.Ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", bookshelf.ErrNotFound, loc.Ref)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek file: %w", err)
	}

	return &limitedFile{Reader: io.LimitReader(file, length), file: file}, nil
}

// Resolve maps a locator reference to a path inside the base directory.
func (b *Backend) Resolve(ref string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(ref))
	rel, ok := strings.CutPrefix(cleaned, b.urlPrefix+"/")
	if !ok || rel == "" {
		return "", fmt.Errorf("%w: %s is outside %s", bookshelf.ErrNotFound, ref, b.urlPrefix)
	}

	full := filepath.Join(b.baseDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes the upload directory", bookshelf.ErrNotFound, ref)
	}
	return full, nil
}

type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error { return l.file.Close() }

// extension returns a lower-cased, conservative file extension of name.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
