package routehandlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/storage"
	"github.com/coreybb/rhymera/webutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewAuthHandler(newFakeUsers(), tokens)
}

func register(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	webutil.MakeHandler(h.HandleRegister)(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	h := newAuthHandler(t)

	rec := register(t, h, `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hashed_password")
	assert.NotContains(t, rec.Body.String(), "correct horse")

	t.Run("duplicate username", func(t *testing.T) {
		rec := register(t, h, `{"username":"ada","email":"other@example.com","password":"correct horse"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already registered", errorBody(t, rec))
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := register(t, h, `{"username":"grace","email":"ada@example.com","password":"correct horse"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email already registered", errorBody(t, rec))
	})

	t.Run("short password", func(t *testing.T) {
		rec := register(t, h, `{"username":"grace","email":"grace@example.com","password":"short"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("form login", func(t *testing.T) {
		form := url.Values{"username": {"ada"}, "password": {"correct horse"}}
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set(webutil.HeaderContentType, webutil.ContentTypeForm)
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleToken)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var tok tokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
		assert.Equal(t, "bearer", tok.TokenType)

		p, err := h.Tokens.Verify(tok.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "ada", p.Username)
	})

	t.Run("json login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":"ada","password":"correct horse"}`))
		req.Header.Set(webutil.HeaderContentType, "application/json")
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleToken)(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		form := url.Values{"username": {"ada"}, "password": {"wrong horse"}}
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set(webutil.HeaderContentType, webutil.ContentTypeForm)
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleToken)(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect username or password", errorBody(t, rec))
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("unknown user", func(t *testing.T) {
		form := url.Values{"username": {"nobody"}, "password": {"correct horse"}}
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set(webutil.HeaderContentType, webutil.ContentTypeForm)
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleToken)(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetCurrentUser(t *testing.T) {
	h := newAuthHandler(t)
	rec := register(t, h, `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	webutil.MakeHandler(h.HandleGetCurrentUser)(rec, asUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), created.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"ada"`)

	rec = httptest.NewRecorder()
	webutil.MakeHandler(h.HandleGetCurrentUser)(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func seedBooks(books *fakeBooks) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		books.books = append(books.books, models.BookRecord{
			ID:        fmt.Sprintf("b%d", i),
			OwnerID:   "u1",
			Title:     fmt.Sprintf("Book %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	books.books = append(books.books, models.BookRecord{ID: "other", OwnerID: "u2", Title: "Not yours"})
}

func TestBookHandlers(t *testing.T) {
	books := &fakeBooks{}
	seedBooks(books)
	pdf := &fakeRenderer{out: []byte("%PDF-1.3 fake")}
	epub := &fakeRenderer{err: errBoom}
	h := NewBookHandler(books, pdf, epub)

	t.Run("list requires auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleListBooks)(rec, httptest.NewRequest(http.MethodGet, "/books", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list paginates newest first", func(t *testing.T) {
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleListBooks)(rec, asUser(httptest.NewRequest(http.MethodGet, "/books?limit=2&skip=0", nil), "u1"))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []models.BookRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "b2", got[0].ID)
		assert.Equal(t, "b1", got[1].ID)
	})

	t.Run("list empty is an array", func(t *testing.T) {
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleListBooks)(rec, asUser(httptest.NewRequest(http.MethodGet, "/books", nil), "nobody"))
		assert.Equal(t, "[]", rec.Body.String())
	})

	t.Run("list rejects bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleListBooks)(rec, asUser(httptest.NewRequest(http.MethodGet, "/books?limit=ten", nil), "u1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get other owner is not found", func(t *testing.T) {
		req := withURLParam(asUser(httptest.NewRequest(http.MethodGet, "/books/other", nil), "u1"), "id", "other")
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleGetBook)(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Book not found", errorBody(t, rec))
	})

	t.Run("pdf download", func(t *testing.T) {
		req := withURLParam(asUser(httptest.NewRequest(http.MethodGet, "/books/b1/pdf", nil), "u1"), "id", "b1")
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleDownloadPDF)(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, webutil.ContentTypePDF, rec.Header().Get(webutil.HeaderContentType))
		assert.Equal(t, `attachment; filename="book-b1.pdf"`, rec.Header().Get(webutil.HeaderContentDisposition))
		assert.Equal(t, "%PDF-1.3 fake", rec.Body.String())
	})

	t.Run("render failure is 500", func(t *testing.T) {
		req := withURLParam(asUser(httptest.NewRequest(http.MethodGet, "/books/b1/epub", nil), "u1"), "id", "b1")
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleDownloadEPUB)(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("create ignores client owner", func(t *testing.T) {
		body := `{"id":"forged","owner_id":"u2","title":"Mine","book_type":"poem","pages":[{"page_number":1,"content":"Hi"}]}`
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleCreateBook)(rec, asUser(httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body)), "u1"))
		require.Equal(t, http.StatusCreated, rec.Code)

		var got models.BookRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotEqual(t, "forged", got.ID)
		assert.Equal(t, "u1", got.OwnerID)
		assert.Equal(t, 1, got.PageCount)
	})

	t.Run("create rejects unknown book type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		webutil.MakeHandler(h.HandleCreateBook)(rec, asUser(httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"book_type":"saga"}`)), "u1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerateHandler(t *testing.T) {
	pipeline := &fakePipeline{}
	h := NewGenerateHandler(pipeline, 10)

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/generate-book", strings.NewReader(`{"pages":3,"book_type":"Story","topic":"a brave turtle"}`))
		webutil.MakeHandler(h.HandleGenerateBook)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, pipeline.gotPrincipal)
		assert.Equal(t, models.BookTypeStory, pipeline.gotReq.BookType)
		assert.Contains(t, rec.Body.String(), `"id":""`)
	})

	t.Run("authenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(http.MethodPost, "/generate-book", strings.NewReader(`{"pages":3,"book_type":"poem","topic":"rain"}`)), "u1")
		webutil.MakeHandler(h.HandleGenerateBook)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, pipeline.gotPrincipal)
		assert.Equal(t, "u1", pipeline.gotPrincipal.UserID)
	})

	t.Run("too many pages", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/generate-book", strings.NewReader(`{"pages":11,"book_type":"poem","topic":"rain"}`))
		webutil.MakeHandler(h.HandleGenerateBook)(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "pages must not exceed 10", errorBody(t, rec))
	})

	t.Run("pipeline failure", func(t *testing.T) {
		failing := NewGenerateHandler(&fakePipeline{err: errBoom}, 10)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/generate-book", strings.NewReader(`{"pages":1,"book_type":"poem","topic":"rain"}`))
		webutil.MakeHandler(failing.HandleGenerateBook)(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "book generation failed: boom", errorBody(t, rec))
	})
}

func TestImageHandler(t *testing.T) {
	blobs := storage.NewFileBlobStore(t.TempDir())
	png := []byte("\x89PNG\r\n\x1a\n0000")
	id, err := blobs.Put(t.Context(), png, "page.png", "image/png")
	require.NoError(t, err)

	h := NewImageHandler(blobs)

	rec := httptest.NewRecorder()
	webutil.MakeHandler(h.HandleGetImage)(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/images/"+id, nil), "id", id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(webutil.HeaderContentType))
	assert.Equal(t, webutil.CacheControlImmutable, rec.Header().Get(webutil.HeaderCacheControl))
	assert.Equal(t, png, rec.Body.Bytes())

	etag := rec.Header().Get(webutil.HeaderETag)
	require.NotEmpty(t, etag)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/images/"+id, nil), "id", id)
	req.Header.Set(webutil.HeaderIfNoneMatch, etag)
	rec = httptest.NewRecorder()
	webutil.MakeHandler(h.HandleGetImage)(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	webutil.MakeHandler(h.HandleGetImage)(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/images/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image not found", errorBody(t, rec))
}
