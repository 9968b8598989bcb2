package api

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"atrium/internal/assets"
	"atrium/internal/db"
	"atrium/internal/mediaurl"
)

// multipartOverheadBytes leaves room for multipart framing on top of the
// configured file ceiling.
const multipartOverheadBytes = 64 << 10

type UploadHandler struct {
	users   *db.UserRepository
	assets  *assets.Store
	baseURL string
}

func NewUploadHandler(users *db.UserRepository, assets *assets.Store, baseURL string) *UploadHandler {
	return &UploadHandler{
		users:   users,
		assets:  assets,
		baseURL: baseURL,
	}
}

type UploadPictureResponse struct {
	ProfilePicture string `json:"profilePicture"`
}

// POST /api/v1/users/me/picture
func (h *UploadHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	file, fileHeader, cleanup, ok := readSingleFileUpload(w, r, h.assets.MaxBytes()+multipartOverheadBytes)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	// All validations run before the old asset is touched.
	if fileHeader.Size == 0 {
		badRequest(w, "Uploaded file is empty")
		return
	}
	if !h.assets.AllowedExtension(fileHeader.Filename) {
		badRequest(w, "Unsupported file extension")
		return
	}
	if fileHeader.Size > h.assets.MaxBytes() {
		payloadTooLarge(w, "File exceeds maximum upload size")
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

	// A stale old file is preferable to blocking the new upload, so delete
	// failures are logged and swallowed.
	if user.AvatarPath != nil {
		if err := h.assets.Delete(*user.AvatarPath); err != nil {
			slog.Warn("error deleting previous avatar file", "error", err, "user_id", userID)
		}
	}

	stored, err := h.assets.Save(r.Context(), userID, fileHeader.Filename, file)
	if !handleAssetSaveError(w, err) {
		return
	}

	if err := h.users.UpdateAvatarPath(r.Context(), userID, &stored.Ref); err != nil {
		// The reference must not point at a file that is not durably
		// written, and conversely a written file without a reference is
		// just an orphan; remove it.
		_ = h.assets.Delete(stored.Ref)
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "User not found")
			return
		}
		slog.Error("error persisting avatar reference", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, UploadPictureResponse{
		ProfilePicture: mediaurl.Asset(h.baseURL, stored.Ref),
	})
}

func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "File field 'file' is required")
		cleanup()
		return nil, nil, func() {}, false
	}

	if fileHeader == nil || strings.TrimSpace(fileHeader.Filename) == "" {
		file.Close()
		cleanup()
		badRequest(w, "File name is required")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

func handleAssetSaveError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, assets.ErrEmptyUpload) {
		badRequest(w, "Uploaded file is empty")
		return false
	}
	if errors.Is(err, assets.ErrDisallowedExtension) {
		badRequest(w, "Unsupported file extension")
		return false
	}
	if errors.Is(err, assets.ErrFileTooLarge) {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return false
	}

	slog.Error("error saving asset", "error", err)
	internalError(w)
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
