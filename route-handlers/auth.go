package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/webutil"
)

// UserStore is implemented by the SQL and Mongo user repositories.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type AuthHandler struct {
	Users  UserStore
	Tokens *auth.TokenIssuer
}

func NewAuthHandler(users UserStore, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens}
}

type registerRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		return webutil.ErrBadRequest("Username and email are required")
	}
	if !strings.Contains(req.Email, "@") {
		return webutil.ErrBadRequest("Invalid email address")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return webutil.ErrBadRequestWrap(fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength), err)
	}

	user := models.User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: hash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Users.CreateUser(r.Context(), &user); err != nil {
		switch {
		case errors.Is(err, models.ErrUsernameTaken):
			return webutil.ErrBadRequestWrap("Username already registered", err)
		case errors.Is(err, models.ErrEmailTaken):
			return webutil.ErrBadRequestWrap("Email already registered", err)
		}
		return fmt.Errorf("failed to register user %s: %w", user.Username, err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, user)
	return nil
}

// HandleToken accepts the OAuth2 password form or an equivalent JSON body.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) error {
	username, password, err := readCredentials(r)
	if err != nil {
		return webutil.ErrBadRequestWrap("Invalid request payload", err)
	}
	if username == "" || password == "" {
		return webutil.ErrBadRequest("Username and password are required")
	}

	user, err := h.Users.GetUserByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	if user == nil || auth.CheckPassword(user.HashedPassword, password) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		return webutil.ErrUnauthorized("Incorrect username or password")
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		return webutil.ErrInternalServerWrap("failed to issue token", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
	return nil
}

func (h *AuthHandler) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) error {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		return webutil.ErrUnauthorized("Could not validate credentials")
	}

	user, err := h.Users.GetUserByID(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// The account was removed after the token was issued.
			return webutil.ErrUnauthorized("Could not validate credentials")
		}
		return fmt.Errorf("failed to retrieve user %s: %w", principal.UserID, err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, user)
	return nil
}

func readCredentials(r *http.Request) (string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(webutil.HeaderContentType))
	if mediaType == "application/json" {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(body.Username), body.Password, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(r.PostForm.Get("username")), r.PostForm.Get("password"), nil
}
