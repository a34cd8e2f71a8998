package bookshelf

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the moderation state of a book.
type Status string

// Book status constants (typed).
const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusDeleteRequested Status = "delete_requested"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDeleteRequested:
		return true
	default:
		return false
	}
}

// ParseStatus converts a persisted or user supplied string into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// Role is the role of an authenticated principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// Actor is the verified identity performing an operation. It is supplied by
// the authentication layer and trusted as-is.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Backend identifies which storage backend holds a blob.
type Backend string

const (
	BackendRemote Backend = "remote"
	BackendLocal  Backend = "local"
)

// Locator references a stored blob. Ref is a secure URL for remote blobs and a
// leading-slash relative path (e.g. /uploads/pdfs/pdf-1700000000000-42.pdf)
// for local ones.
type Locator struct {
	Backend Backend `json:"backend"`
	Ref     string  `json:"ref"`
}

func (l Locator) IsZero() bool { return l.Backend == "" && l.Ref == "" }

func (l Locator) String() string { return string(l.Backend) + ":" + l.Ref }

// Slot is the logical purpose of a stored blob.
type Slot string

const (
	SlotCover   Slot = "cover"
	SlotContent Slot = "content"
)

// Folder returns the storage folder used for the slot on every backend.
func (s Slot) Folder() string {
	if s == SlotContent {
		return "pdfs"
	}
	return "covers"
}

// FieldName is the multipart field the slot is uploaded under. Local file
// names are prefixed with it.
func (s Slot) FieldName() string {
	if s == SlotContent {
		return "pdf"
	}
	return "cover"
}

// RemoveResult reports the outcome of a best-effort blob removal.
type RemoveResult string

const (
	RemoveRemoved     RemoveResult = "removed"
	RemoveNotFound    RemoveResult = "not_found"
	RemoveRemoteError RemoveResult = "remote_error"
	// RemoveFailed reports a local filesystem error other than a missing file.
	RemoveFailed RemoveResult = "failed"
)

// Book is the persisted book record.
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Cover       Locator   `json:"cover"`
	Content     Locator   `json:"content"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload is a file payload submitted with a book.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Size        int64
	ContentType string
}

// ModerationCounts is the pull-based summary of outstanding moderation work.
type ModerationCounts struct {
	Pending         int `json:"pending"`
	DeleteRequested int `json:"delete_requested"`
	Total           int `json:"total"`
}

// DeleteReport describes the outcome of a terminal deletion.
type DeleteReport struct {
	BookID  uuid.UUID    `json:"book_id"`
	Cover   RemoveResult `json:"cover"`
	Content RemoveResult `json:"content"`
}

// BookQuery filters repository listings. Zero values do not filter.
type BookQuery struct {
	Status   Status
	OwnerID  uuid.UUID
	Category string
	Search   string
}
