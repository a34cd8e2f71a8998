package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements bookshelf.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the books table and its indexes if they do not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("book already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("%w: required field %s is missing", bookshelf.ErrValidation, pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", bookshelf.ErrInvalidStatus, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return bookshelf.ErrNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const bookColumns = `id, title, author, category, description,
	cover_backend, cover_ref, content_backend, content_ref,
	owner_id, status, created_at, updated_at`

func scanBook(row pgx.Row) (*bookshelf.Book, error) {
	var book bookshelf.Book
	var coverBackend, contentBackend, status string
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.Category, &book.Description,
		&coverBackend, &book.Cover.Ref, &contentBackend, &book.Content.Ref,
		&book.OwnerID, &status, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return nil, err
	}

	book.Cover.Backend = bookshelf.Backend(coverBackend)
	book.Content.Backend = bookshelf.Backend(contentBackend)
	if book.Status, err = bookshelf.ParseStatus(status); err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) CreateBook(ctx context.Context, book *bookshelf.Book) error {
	query := `
		INSERT INTO books (` + bookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		book.ID, book.Title, book.Author, book.Category, book.Description,
		string(book.Cover.Backend), book.Cover.Ref, string(book.Content.Backend), book.Content.Ref,
		book.OwnerID, string(book.Status), book.CreatedAt, book.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create book", err)
	}
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*bookshelf.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	book, err := scanBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get book", err)
	}
	return book, nil
}

// UpdateBookStatus performs a compare-and-set on the status column
func (r *Repository) UpdateBookStatus(ctx context.Context, id uuid.UUID, expected, next bookshelf.Status) (*bookshelf.Book, error) {
	query := `
		UPDATE books SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + bookColumns

	book, err := scanBook(r.db.QueryRow(ctx, query, id, string(expected), string(next), time.Now().UTC()))
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.handlePostgresError("update book status", err)
	}

	// Either the book is gone or its status moved on
	current, getErr := r.GetBook(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: status changed concurrently (now %s)", bookshelf.ErrInvalidTransition, current.Status)
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete book", err)
	}
	if tag.RowsAffected() == 0 {
		return bookshelf.ErrNotFound
	}
	return nil
}

func (r *Repository) ListBooks(ctx context.Context, q bookshelf.BookQuery) ([]*bookshelf.Book, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Status != "" {
		conditions = append(conditions, "status = "+arg(string(q.Status)))
	}
	if q.OwnerID != uuid.Nil {
		conditions = append(conditions, "owner_id = "+arg(q.OwnerID))
	}
	if q.Category != "" {
		conditions = append(conditions, "category ILIKE "+arg(likePattern(q.Category)))
	}
	if q.Search != "" {
		p := arg(likePattern(q.Search))
		conditions = append(conditions, fmt.Sprintf("(title ILIKE %s OR author ILIKE %s OR description ILIKE %s)", p, p, p))
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list books", err)
	}
	defer rows.Close()

	books := make([]*bookshelf.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan book", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list books", err)
	}
	return books, nil
}

// likePattern wraps s for a case-insensitive substring match, escaping the
// LIKE wildcards it contains.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
