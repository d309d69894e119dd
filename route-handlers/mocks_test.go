package routehandlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return models.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return models.ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, models.ErrUserNotFound
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

type fakeBooks struct {
	books     []models.BookRecord
	createErr error
}

func (f *fakeBooks) Create(_ context.Context, book *models.BookRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	book.ID = uuid.NewString()
	book.Normalize()
	f.books = append(f.books, *book)
	return nil
}

func (f *fakeBooks) List(_ context.Context, ownerID string, limit, offset int) ([]models.BookRecord, error) {
	limit, offset = models.ClampPage(limit, offset)
	var owned []models.BookRecord
	for _, b := range f.books {
		if b.OwnerID == ownerID {
			owned = append(owned, b)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })
	if offset >= len(owned) {
		return nil, nil
	}
	end := min(offset+limit, len(owned))
	return owned[offset:end], nil
}

func (f *fakeBooks) Get(_ context.Context, bookID, ownerID string) (*models.BookRecord, error) {
	for _, b := range f.books {
		if b.ID == bookID && b.OwnerID == ownerID {
			cp := b
			return &cp, nil
		}
	}
	return nil, models.ErrBookNotFound
}

type fakeRenderer struct {
	out []byte
	err error
}

func (f *fakeRenderer) Render(_ context.Context, _ *models.BookRecord) ([]byte, error) {
	return f.out, f.err
}

type fakePipeline struct {
	gotReq       models.BookRequest
	gotPrincipal *models.Principal
	err          error
}

func (f *fakePipeline) Generate(_ context.Context, req models.BookRequest, principal *models.Principal) (*models.BookRecord, error) {
	f.gotReq = req
	f.gotPrincipal = principal
	if f.err != nil {
		return nil, f.err
	}
	rec := &models.BookRecord{Title: "Tuck", BookType: req.BookType, PageCount: req.PageCount}
	if principal != nil {
		rec.ID = "b1"
		rec.OwnerID = principal.UserID
	}
	return rec, nil
}

var errBoom = errors.New("boom")

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), &models.Principal{UserID: userID, Username: userID}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
