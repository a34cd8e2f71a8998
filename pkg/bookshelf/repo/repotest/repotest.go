// Package repotest holds behaviour tests shared by every bookshelf.Repository
// implementation.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// NewBook returns a valid book with the given owner, status and creation time
func NewBook(owner uuid.UUID, status bookshelf.Status, title string, createdAt time.Time) *bookshelf.Book {
	return &bookshelf.Book{
		ID:          uuid.New(),
		Title:       title,
		Author:      "Imam an-Nawawi",
		Category:    "Hadith",
		Description: "Forty foundational narrations",
		Cover:       bookshelf.Locator{Backend: bookshelf.BackendLocal, Ref: "/uploads/covers/cover-1-1.png"},
		Content:     bookshelf.Locator{Backend: bookshelf.BackendRemote, Ref: "https://cdn.example.com/islamic_books/pdfs/p.pdf"},
		OwnerID:     owner,
		Status:      status,
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt:   createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) bookshelf.Repository) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newRepo(t)) })
	t.Run("UpdateStatusCompareAndSet", func(t *testing.T) { testUpdateStatus(t, newRepo(t)) })
	t.Run("ConcurrentTransitions", func(t *testing.T) { testConcurrentTransitions(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("ListBooks", func(t *testing.T) { testListBooks(t, newRepo(t)) })
}

func testCreateAndGet(t *testing.T, repo bookshelf.Repository) {
	ctx := context.Background()
	book := NewBook(uuid.New(), bookshelf.StatusPending, "Riyad as-Salihin", time.Now())

	require.NoError(t, repo.CreateBook(ctx, book))
	assert.Error(t, repo.CreateBook(ctx, book), "duplicate ids are rejected")

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, book.Cover, got.Cover)
	assert.Equal(t, book.Content, got.Content)
	assert.Equal(t, book.OwnerID, got.OwnerID)
	assert.Equal(t, bookshelf.StatusPending, got.Status)
	assert.True(t, book.CreatedAt.Equal(got.CreatedAt))

	// Returned books are copies
	got.Title = "changed"
	again, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riyad as-Salihin", again.Title)

	_, err = repo.GetBook(ctx, uuid.New())
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)

	invalid := NewBook(uuid.New(), bookshelf.Status("archived"), "Invalid", time.Now())
	assert.ErrorIs(t, repo.CreateBook(ctx, invalid), bookshelf.ErrInvalidStatus)
}

func testUpdateStatus(t *testing.T, repo bookshelf.Repository) {
	ctx := context.Background()
	book := NewBook(uuid.New(), bookshelf.StatusPending, "Bulugh al-Maram", time.Now().Add(-time.Hour))
	require.NoError(t, repo.CreateBook(ctx, book))

	updated, err := repo.UpdateBookStatus(ctx, book.ID, bookshelf.StatusPending, bookshelf.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.StatusApproved, updated.Status)
	assert.True(t, updated.UpdatedAt.After(book.UpdatedAt))

	_, err = repo.UpdateBookStatus(ctx, book.ID, bookshelf.StatusPending, bookshelf.StatusRejected)
	assert.ErrorIs(t, err, bookshelf.ErrInvalidTransition)

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, bookshelf.StatusApproved, got.Status, "a failed compare-and-set writes nothing")

	_, err = repo.UpdateBookStatus(ctx, uuid.New(), bookshelf.StatusPending, bookshelf.StatusApproved)
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
}

func testConcurrentTransitions(t *testing.T, repo bookshelf.Repository) {
	ctx := context.Background()
	book := NewBook(uuid.New(), bookshelf.StatusPending, "Al-Muwatta", time.Now())
	require.NoError(t, repo.CreateBook(ctx, book))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		next := bookshelf.StatusApproved
		if i%2 == 1 {
			next = bookshelf.StatusRejected
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateBookStatus(ctx, book.ID, bookshelf.StatusPending, next)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, bookshelf.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent decision wins")
}

func testDelete(t *testing.T, repo bookshelf.Repository) {
	ctx := context.Background()
	book := NewBook(uuid.New(), bookshelf.StatusApproved, "Sahih Muslim", time.Now())
	require.NoError(t, repo.CreateBook(ctx, book))

	require.NoError(t, repo.DeleteBook(ctx, book.ID))
	assert.ErrorIs(t, repo.DeleteBook(ctx, book.ID), bookshelf.ErrNotFound)

	_, err := repo.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)
}

func testListBooks(t *testing.T, repo bookshelf.Repository) {
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()
	base := time.Now().Add(-24 * time.Hour)

	oldest := NewBook(owner, bookshelf.StatusApproved, "Tafsir Ibn Kathir", base)
	oldest.Category = "Tafsir"
	oldest.Description = "Exegesis"
	middle := NewBook(other, bookshelf.StatusApproved, "100% Sahih_Collection", base.Add(time.Minute))
	newest := NewBook(owner, bookshelf.StatusPending, "Kitab at-Tawhid", base.Add(2*time.Minute))
	newest.Category = "Aqidah"
	for _, b := range []*bookshelf.Book{oldest, middle, newest} {
		require.NoError(t, repo.CreateBook(ctx, b))
	}

	ids := func(books []*bookshelf.Book) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(books))
		for _, b := range books {
			out = append(out, b.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query bookshelf.BookQuery
		want  []uuid.UUID
	}{
		{"all newest first", bookshelf.BookQuery{}, []uuid.UUID{newest.ID, middle.ID, oldest.ID}},
		{"by status", bookshelf.BookQuery{Status: bookshelf.StatusApproved}, []uuid.UUID{middle.ID, oldest.ID}},
		{"by owner", bookshelf.BookQuery{OwnerID: owner}, []uuid.UUID{newest.ID, oldest.ID}},
		{"category case-insensitive", bookshelf.BookQuery{Category: "tafsir"}, []uuid.UUID{oldest.ID}},
		{"search title", bookshelf.BookQuery{Search: "TAWHID"}, []uuid.UUID{newest.ID}},
		{"search description", bookshelf.BookQuery{Search: "exegesis"}, []uuid.UUID{oldest.ID}},
		{"search author", bookshelf.BookQuery{Status: bookshelf.StatusApproved, Search: "nawawi"}, []uuid.UUID{middle.ID, oldest.ID}},
		{"wildcards are literal", bookshelf.BookQuery{Search: "100%"}, []uuid.UUID{middle.ID}},
		{"underscore is literal", bookshelf.BookQuery{Search: "h_c"}, []uuid.UUID{middle.ID}},
		{"combined filters", bookshelf.BookQuery{Status: bookshelf.StatusPending, OwnerID: other}, []uuid.UUID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := repo.ListBooks(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(books), fmt.Sprintf("%+v", tt.query))
		})
	}
}
