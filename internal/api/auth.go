package api

import (
	"errors"
	"log/slog"
	"net/http"

	"atrium/internal/auth"
	"atrium/internal/db"
	"atrium/internal/session"
)

type AuthHandler struct {
	users    *db.UserRepository
	sessions *session.Manager
	hasher   *auth.PasswordHasher
	policy   auth.PasswordPolicy
	baseURL  string
}

func NewAuthHandler(
	users *db.UserRepository,
	sessions *session.Manager,
	hasher *auth.PasswordHasher,
	policy auth.PasswordPolicy,
	baseURL string,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		policy:   policy,
		baseURL:  baseURL,
	}
}

type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	Password  string  `json:"password" validate:"required,max=128"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	email := normalizeEmail(req.Email)
	if violations := h.policy.Validate(req.Password); len(violations) > 0 {
		validationFailed(w, violations)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.Create(r.Context(), email, passwordHash, sanitizeName(req.FirstName), sanitizeName(req.LastName))
	if errors.Is(err, db.ErrDuplicateEmail) {
		conflict(w, "Email already in use")
		return
	}
	if err != nil {
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	slog.Info("user registered", "user_id", user.ID)

	// Registration does not establish a session; the client must log in.
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account created"})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	// Unknown email and wrong password produce the same response, so the
	// endpoint cannot be used to probe which emails exist.
	user, err := h.users.FindByEmail(r.Context(), normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Invalid email or password")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	if !h.hasher.Verify(user.PasswordHash, req.Password) {
		unauthorized(w, "Invalid email or password")
		return
	}

	token, err := h.sessions.Issue(r.Context(), user.ID)
	if err != nil {
		slog.Error("error issuing session", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	http.SetCookie(w, h.sessions.SessionCookie(token))
	writeJSON(w, http.StatusOK, profileFromUser(user, h.baseURL))
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	cookie, err := r.Cookie(h.sessions.CookieName())
	if err == nil && cookie.Value != "" {
		if err := h.sessions.Revoke(r.Context(), cookie.Value); err != nil {
			slog.Error("error revoking session", "error", err, "user_id", userID)
			internalError(w)
			return
		}
	}

	http.SetCookie(w, h.sessions.ExpiredCookie())
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}
