package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coreybb/rhymera/auth"
	rh "github.com/coreybb/rhymera/route-handlers"
	"github.com/coreybb/rhymera/webutil"
)

const (
	registerPath = "/register"
	tokenPath    = "/token"
	usersMePath  = "/users/me"
	generatePath = "/generate-book"
	booksPath    = "/books"
	imagesPath   = "/images"
)

const (
	pdfSubPath  = "/pdf"
	epubSubPath = "/epub"
)

const (
	paramID = "id"
)

// requestTimeout bounds every route except book generation, which waits on the model for as long as it takes.
const requestTimeout = 60 * time.Second

type Handlers struct {
	Auth     *rh.AuthHandler
	Books    *rh.BookHandler
	Generate *rh.GenerateHandler
	Images   *rh.ImageHandler
}

func SetupRoutes(handlers Handlers, tokens *auth.TokenIssuer, loginLimiter *IPLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(auth.Authenticate(tokens))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		configureAuthRoutes(r, handlers.Auth, loginLimiter)
		configureBookRoutes(r, handlers.Books)
		r.Get(pathWithParam(imagesPath, paramID), webutil.MakeHandler(handlers.Images.HandleGetImage))
	})

	// Optional auth: anonymous callers get the book back unsaved.
	r.Post(generatePath, webutil.MakeHandler(handlers.Generate.HandleGenerateBook))

	r.Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// --- Auth Routes ---
func configureAuthRoutes(r chi.Router, handler *rh.AuthHandler, limiter *IPLimiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Post(registerPath, webutil.MakeHandler(handler.HandleRegister))
		r.Post(tokenPath, webutil.MakeHandler(handler.HandleToken))
	})
	r.With(auth.RequireAuth).Get(usersMePath, webutil.MakeHandler(handler.HandleGetCurrentUser))
}

// --- Book Routes ---
func configureBookRoutes(r chi.Router, handler *rh.BookHandler) {
	specificBookPath := pathWithParam("", paramID) // e.g., "/{id}"

	r.Route(booksPath, func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/", webutil.MakeHandler(handler.HandleListBooks))
		r.Post("/", webutil.MakeHandler(handler.HandleCreateBook))
		r.Route(specificBookPath, func(r chi.Router) {
			r.Get("/", webutil.MakeHandler(handler.HandleGetBook))
			r.Get(pdfSubPath, webutil.MakeHandler(handler.HandleDownloadPDF))   // GET /books/{id}/pdf
			r.Get(epubSubPath, webutil.MakeHandler(handler.HandleDownloadEPUB)) // GET /books/{id}/epub
		})
	})
}

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
