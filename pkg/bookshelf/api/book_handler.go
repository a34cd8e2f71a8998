package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// HandlerConfig options for the book handler
type HandlerConfig struct {
	MaxUploadSize   int64  // Per-file limit, default bookshelf.DefaultMaxUploadSize
	UploadURLPrefix string // URL prefix of locally stored files, default "/uploads"
}

// BookResponse is the response body for a book
type BookResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	CoverURL       string    `json:"cover_url"`
	CoverBackend   string    `json:"cover_backend"`
	PDFURL         string    `json:"pdf_url"`
	ContentBackend string    `json:"content_backend"`
	OwnerID        string    `json:"owner_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BookHandler handles HTTP requests for books
type BookHandler struct {
	service bookshelf.Service
	gateway *bookshelf.StreamingGateway
	auth    *jwtauth.JWTAuth
	config  HandlerConfig
}

// NewBookHandler creates a new book handler
func NewBookHandler(service bookshelf.Service, gateway *bookshelf.StreamingGateway, auth *jwtauth.JWTAuth, config HandlerConfig) *BookHandler {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = bookshelf.DefaultMaxUploadSize
	}
	if config.UploadURLPrefix == "" {
		config.UploadURLPrefix = "/uploads"
	}
	return &BookHandler{
		service: service,
		gateway: gateway,
		auth:    auth,
		config:  config,
	}
}

// Routes returns the routes for books, meant to be mounted at /api/books
func (h *BookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(h.auth))
	r.Use(Authenticate)

	r.Get("/", h.ListApproved)

	// Writers and admins
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Post("/upload", h.Upload)
		r.Get("/user", h.ListMine)
		r.Post("/request-delete/{id}", h.RequestDelete)
		r.Delete("/{id}", h.Delete)
	})

	// Admin only
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/pending", h.ListPending)
		r.Get("/delete-requests", h.ListDeleteRequested)
		r.Get("/counts", h.Counts)
		r.Put("/admin/approve/{id}", h.Approve)
		r.Put("/admin/reject/{id}", h.Reject)
		r.Put("/admin/approve-delete/{id}", h.ApproveDelete)
		r.Put("/admin/reject-delete/{id}", h.RejectDelete)
	})

	r.Get("/{id}", h.GetBook)
	r.Get("/{id}/pdf", h.StreamPDF)
	r.Get("/{id}/cover", h.StreamCover)

	return r
}

// UploadRoutes serves locally stored files, meant to be mounted at the
// upload URL prefix
func (h *BookHandler) UploadRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/pdfs/{file}", h.ServeLocalPDF)
	r.Get("/covers/{file}", h.ServeLocalCover)
	return r
}

// Upload accepts a multipart submission with cover and pdf files
func (h *BookHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	// Two files plus form fields
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", bookshelf.ErrValidation, maxErr.Limit))
			return
		}
		writeError(w, r, fmt.Errorf("%w: invalid multipart form: %v", bookshelf.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	cover, err := h.readFile(r, bookshelf.SlotCover.FieldName())
	if err != nil {
		writeError(w, r, err)
		return
	}
	pdf, err := h.readFile(r, bookshelf.SlotContent.FieldName())
	if err != nil {
		writeError(w, r, err)
		return
	}

	book, err := h.service.Submit(r.Context(), bookshelf.SubmitRequest{
		Actor:       actor,
		Title:       strings.TrimSpace(r.FormValue("title")),
		Author:      strings.TrimSpace(r.FormValue("author")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Cover:       cover,
		Content:     pdf,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toBookResponse(book))
}

func (h *BookHandler) readFile(r *http.Request, field string) (bookshelf.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return bookshelf.Upload{}, fmt.Errorf("%w: %s file is required", bookshelf.ErrValidation, field)
	}
	if err != nil {
		return bookshelf.Upload{}, fmt.Errorf("%w: invalid %s file: %v", bookshelf.ErrValidation, field, err)
	}
	defer file.Close()

	if header.Size > h.config.MaxUploadSize {
		return bookshelf.Upload{}, fmt.Errorf("%w: %s file exceeds %d bytes", bookshelf.ErrValidation, field, h.config.MaxUploadSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return bookshelf.Upload{}, fmt.Errorf("failed to read %s file: %w", field, err)
	}

	return bookshelf.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// ListApproved returns the public catalog, filtered by search and category
func (h *BookHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListApproved(r.Context(), bookshelf.ListApprovedRequest{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toBookResponses(books))
}

// ListMine returns every book owned by the caller
func (h *BookHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	books, err := h.service.ListByOwner(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toBookResponses(books))
}

func (h *BookHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toBookResponses(books))
}

func (h *BookHandler) ListDeleteRequested(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListDeleteRequested(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toBookResponses(books))
}

// Counts returns the number of books waiting for an admin decision
func (h *BookHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.ModerationCounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, counts)
}

// GetBook returns a single book. Unapproved books are only visible to admins
// and their owner.
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.visibleBook(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, toBookResponse(book))
}

func (h *BookHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *BookHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

func (h *BookHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.RequestDelete)
}

func (h *BookHandler) RejectDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.RejectDelete)
}

func (h *BookHandler) ApproveDelete(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, h.service.ApproveDelete)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, h.service.Delete)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.Book, error)

type purgeFunc func(ctx context.Context, id uuid.UUID, actor bookshelf.Actor) (*bookshelf.DeleteReport, error)

func (h *BookHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFromContext(r.Context())

	book, err := fn(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toBookResponse(book))
}

func (h *BookHandler) purge(w http.ResponseWriter, r *http.Request, fn purgeFunc) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFromContext(r.Context())

	report, err := fn(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// StreamPDF streams the book content from whichever backend holds it,
// honouring Range requests
func (h *BookHandler) StreamPDF(w http.ResponseWriter, r *http.Request) {
	book, ok := h.visibleBook(w, r)
	if !ok {
		return
	}
	h.serveStream(w, r, book.Content, r.Header.Get("Range"), "application/pdf")
}

// StreamCover serves the book cover from whichever backend holds it
func (h *BookHandler) StreamCover(w http.ResponseWriter, r *http.Request) {
	book, ok := h.visibleBook(w, r)
	if !ok {
		return
	}
	h.serveStream(w, r, book.Cover, "", "")
}

// ServeLocalPDF streams a locally stored pdf, honouring Range requests
func (h *BookHandler) ServeLocalPDF(w http.ResponseWriter, r *http.Request) {
	loc := h.localLocator(bookshelf.SlotContent, chi.URLParam(r, "file"))
	h.serveStream(w, r, loc, r.Header.Get("Range"), "application/pdf")
}

// ServeLocalCover serves a locally stored cover in full
func (h *BookHandler) ServeLocalCover(w http.ResponseWriter, r *http.Request) {
	loc := h.localLocator(bookshelf.SlotCover, chi.URLParam(r, "file"))
	h.serveStream(w, r, loc, "", "")
}

func (h *BookHandler) localLocator(slot bookshelf.Slot, file string) bookshelf.Locator {
	return bookshelf.Locator{
		Backend: bookshelf.BackendLocal,
		Ref:     path.Join(h.config.UploadURLPrefix, slot.Folder(), file),
	}
}

func (h *BookHandler) serveStream(w http.ResponseWriter, r *http.Request, loc bookshelf.Locator, rangeHeader, contentType string) {
	stream, err := h.gateway.Stream(r.Context(), loc, rangeHeader)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Body.Close()

	if contentType == "" {
		contentType = stream.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", stream.AcceptRanges)
	w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength(), 10))

	status := http.StatusOK
	if stream.Partial {
		w.Header().Set("Content-Range", stream.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if _, err := io.Copy(w, stream.Body); err != nil {
		slog.WarnContext(r.Context(), "Stream interrupted", "ref", loc.Ref, "error", err)
	}
}

func (h *BookHandler) visibleBook(w http.ResponseWriter, r *http.Request) (*bookshelf.Book, bool) {
	id, ok := bookID(w, r)
	if !ok {
		return nil, false
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	if book.Status != bookshelf.StatusApproved {
		actor, authenticated := ActorFromContext(r.Context())
		if !authenticated || (!actor.IsAdmin() && actor.ID != book.OwnerID) {
			writeError(w, r, &bookshelf.BookError{BookID: id, Op: "get", Err: bookshelf.ErrNotFound})
			return nil, false
		}
	}
	return book, true
}

func bookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid book id %q", bookshelf.ErrValidation, raw))
		return uuid.Nil, false
	}
	return id, true
}

func toBookResponse(book *bookshelf.Book) BookResponse {
	return BookResponse{
		ID:             book.ID.String(),
		Title:          book.Title,
		Author:         book.Author,
		Category:       book.Category,
		Description:    book.Description,
		CoverURL:       book.Cover.Ref,
		CoverBackend:   string(book.Cover.Backend),
		PDFURL:         book.Content.Ref,
		ContentBackend: string(book.Content.Backend),
		OwnerID:        book.OwnerID.String(),
		Status:         string(book.Status),
		CreatedAt:      book.CreatedAt,
		UpdatedAt:      book.UpdatedAt,
	}
}

func toBookResponses(books []*bookshelf.Book) []BookResponse {
	resp := make([]BookResponse, 0, len(books))
	for _, book := range books {
		resp = append(resp, toBookResponse(book))
	}
	return resp
}
