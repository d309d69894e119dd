package routehandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/processing"
	"github.com/coreybb/rhymera/webutil"
	"github.com/go-chi/chi/v5"
)

// Renderer turns a stored book into a downloadable document.
type Renderer interface {
	Render(ctx context.Context, book *models.BookRecord) ([]byte, error)
}

type BookHandler struct {
	Books processing.BookStore
	PDF   Renderer
	EPUB  Renderer
}

func NewBookHandler(books processing.BookStore, pdf, epub Renderer) *BookHandler {
	return &BookHandler{Books: books, PDF: pdf, EPUB: epub}
}

// HandleCreateBook stores a client-supplied book for the caller. Any id or owner in the body is ignored.
func (h *BookHandler) HandleCreateBook(w http.ResponseWriter, r *http.Request) error {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		return webutil.ErrUnauthorized("Authentication required to save books")
	}

	var book models.BookRecord
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if book.BookType != "" {
		bt, ok := models.ParseBookType(string(book.BookType))
		if !ok {
			return webutil.ErrBadRequest("Invalid book_type")
		}
		book.BookType = bt
	}
	book.ID = ""
	book.OwnerID = principal.UserID
	if book.PageCount == 0 {
		book.PageCount = len(book.Pages)
	}

	if err := h.Books.Create(r.Context(), &book); err != nil {
		return fmt.Errorf("failed to save book for user %s: %w", principal.UserID, err)
	}
	webutil.RespondWithJSON(w, http.StatusCreated, book)
	return nil
}

func (h *BookHandler) HandleListBooks(w http.ResponseWriter, r *http.Request) error {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		return webutil.ErrUnauthorized("Authentication required to view books")
	}

	limit, err := queryInt(r, "limit", models.DefaultListLimit)
	if err != nil {
		return err
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return err
	}

	books, err := h.Books.List(r.Context(), principal.UserID, limit, skip)
	if err != nil {
		return fmt.Errorf("failed to list books for user %s: %w", principal.UserID, err)
	}
	if books == nil {
		books = []models.BookRecord{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, books)
	return nil
}

func (h *BookHandler) HandleGetBook(w http.ResponseWriter, r *http.Request) error {
	book, err := h.ownedBook(r)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, book)
	return nil
}

func (h *BookHandler) HandleDownloadPDF(w http.ResponseWriter, r *http.Request) error {
	return h.download(w, r, h.PDF, webutil.ContentTypePDF, "pdf")
}

func (h *BookHandler) HandleDownloadEPUB(w http.ResponseWriter, r *http.Request) error {
	return h.download(w, r, h.EPUB, webutil.ContentTypeEPUB, "epub")
}

func (h *BookHandler) download(w http.ResponseWriter, r *http.Request, renderer Renderer, contentType, ext string) error {
	book, err := h.ownedBook(r)
	if err != nil {
		return err
	}

	data, err := renderer.Render(r.Context(), book)
	if err != nil {
		return webutil.ErrInternalServerWrap(fmt.Sprintf("failed to render %s for book %s", ext, book.ID), err)
	}

	w.Header().Set(webutil.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="book-%s.%s"`, book.ID, ext))
	webutil.RespondWithBytes(w, http.StatusOK, contentType, data)
	return nil
}

// ownedBook loads the book named in the path for the authenticated caller. Books of other owners
// are indistinguishable from missing ones.
func (h *BookHandler) ownedBook(r *http.Request) (*models.BookRecord, error) {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		return nil, webutil.ErrUnauthorized("Authentication required to view books")
	}

	bookID := chi.URLParam(r, "id")
	book, err := h.Books.Get(r.Context(), bookID, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve book %s: %w", bookID, err)
	}
	return book, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, webutil.ErrBadRequest(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}
