package api

import (
	"errors"
	"log/slog"
	"net/http"

	"atrium/internal/assets"
	"atrium/internal/db"
	"atrium/internal/session"
)

type UserHandler struct {
	users    *db.UserRepository
	sessions *session.Manager
	assets   *assets.Store
	baseURL  string
}

func NewUserHandler(users *db.UserRepository, sessions *session.Manager, assets *assets.Store, baseURL string) *UserHandler {
	return &UserHandler{
		users:    users,
		sessions: sessions,
		assets:   assets,
		baseURL:  baseURL,
	}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, profileFromUser(user, h.baseURL))
}

type UpdateProfileRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

type ReauthResponse struct {
	Message        string `json:"message"`
	ReauthRequired bool   `json:"reauthRequired"`
}

// PUT /api/v1/users/me
//
// The acting user always comes from the session; the body's email is the
// requested new value, never the actor's identity.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	newEmail := normalizeEmail(req.Email)
	emailChanged := newEmail != user.Email

	if emailChanged {
		taken, err := h.users.EmailTaken(r.Context(), newEmail, userID)
		if err != nil {
			slog.Error("error checking email availability", "error", err)
			internalError(w)
			return
		}
		if taken {
			conflict(w, "Email already in use")
			return
		}
	}

	err = h.users.UpdateProfile(r.Context(), userID, newEmail, sanitizeName(req.FirstName), sanitizeName(req.LastName))
	if errors.Is(err, db.ErrDuplicateEmail) {
		// Two racing updates can pass the availability check; the unique
		// constraint is the source of truth.
		conflict(w, "Email already in use")
		return
	}
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error updating profile", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	if emailChanged {
		// The session was scoped to the old email, so it must not survive
		// the change. The client has to log in again.
		if err := h.sessions.RevokeAllForUser(r.Context(), userID); err != nil {
			slog.Error("error revoking sessions after email change", "error", err, "user_id", userID)
			internalError(w)
			return
		}
		http.SetCookie(w, h.sessions.ExpiredCookie())
		slog.Info("email changed, sessions revoked", "user_id", userID)
		writeJSON(w, http.StatusOK, ReauthResponse{
			Message:        "Email updated, please log in again",
			ReauthRequired: true,
		})
		return
	}

	updated, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		slog.Error("error loading updated user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, profileFromUser(updated, h.baseURL))
}

// DELETE /api/v1/users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	// Sessions cascade with the user row.
	if err := h.users.Delete(r.Context(), userID); err != nil {
		slog.Error("error deleting user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	if user.AvatarPath != nil {
		if err := h.assets.Delete(*user.AvatarPath); err != nil {
			slog.Warn("error deleting avatar file", "error", err, "user_id", userID)
		}
	}

	http.SetCookie(w, h.sessions.ExpiredCookie())
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted"})
}
