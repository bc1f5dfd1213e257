package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/todo-api/internal/services"
	"github.com/rs/zerolog/log"
)

// TokenIssuer mints access tokens for an authenticated username.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// UserHandler handles registration and login.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  TokenIssuer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, tokens TokenIssuer) *UserHandler {
	return &UserHandler{service: service, tokens: tokens}
}

// TokenResponse is the body returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		writeError(w, err, nil, "")
		return
	}
	vals, err := p.required("username", "password")
	if err != nil {
		writeError(w, err, nil, "")
		return
	}
	username, password := vals[0], vals[1]

	if _, err := h.service.Register(r.Context(), username, password); err != nil {
		if errors.Is(err, services.ErrDuplicateUser) {
			writeDetail(w, http.StatusBadRequest, "Username already registered")
			return
		}
		writeError(w, err, log.Error().Str("username", username), "Failed to register user")
		return
	}

	log.Info().Str("username", username).Msg("User registered")
	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

// Login handles the password grant and issues a bearer token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid form body")
		return
	}
	vals, err := params(r.PostForm).required("username", "password")
	if err != nil {
		writeError(w, err, nil, "")
		return
	}
	username, password := vals[0], vals[1]

	user, err := h.service.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("username", username).Msg("Failed authentication attempt")
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		writeError(w, err, log.Error().Str("username", username), "Failed to authenticate user")
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		writeError(w, err, log.Error().Str("username", username), "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}
