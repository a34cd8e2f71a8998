package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// Repository implements bookshelf.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	books map[uuid.UUID]*bookshelf.Book
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		books: make(map[uuid.UUID]*bookshelf.Book),
	}
}

func (r *Repository) CreateBook(ctx context.Context, book *bookshelf.Book) error {
	if !book.Status.IsValid() {
		return fmt.Errorf("%w: %q", bookshelf.ErrInvalidStatus, book.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[book.ID]; exists {
		return fmt.Errorf("book %s already exists", book.ID)
	}

	// Create a copy to avoid external modifications
	bookCopy := *book
	r.books[book.ID] = &bookCopy
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*bookshelf.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, exists := r.books[id]
	if !exists {
		return nil, bookshelf.ErrNotFound
	}

	// Return a copy to prevent external modifications
	bookCopy := *book
	return &bookCopy, nil
}

func (r *Repository) UpdateBookStatus(ctx context.Context, id uuid.UUID, expected, next bookshelf.Status) (*bookshelf.Book, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", bookshelf.ErrInvalidStatus, next)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return nil, bookshelf.ErrNotFound
	}
	if book.Status != expected {
		return nil, fmt.Errorf("%w: status changed concurrently (now %s)", bookshelf.ErrInvalidTransition, book.Status)
	}

	book.Status = next
	book.UpdatedAt = time.Now().UTC()

	bookCopy := *book
	return &bookCopy, nil
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[id]; !exists {
		return bookshelf.ErrNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *Repository) ListBooks(ctx context.Context, q bookshelf.BookQuery) ([]*bookshelf.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category := strings.ToLower(q.Category)
	search := strings.ToLower(q.Search)

	result := make([]*bookshelf.Book, 0)
	for _, book := range r.books {
		if q.Status != "" && book.Status != q.Status {
			continue
		}
		if q.OwnerID != uuid.Nil && book.OwnerID != q.OwnerID {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(book.Category), category) {
			continue
		}
		if search != "" && !matchesSearch(book, search) {
			continue
		}
		bookCopy := *book
		result = append(result, &bookCopy)
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func matchesSearch(book *bookshelf.Book, search string) bool {
	for _, field := range []string{book.Title, book.Author, book.Description} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
