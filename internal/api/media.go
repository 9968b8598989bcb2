package api

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"atrium/internal/assets"
)

type MediaHandler struct {
	assets *assets.Store
}

func NewMediaHandler(assets *assets.Store) *MediaHandler {
	return &MediaHandler{assets: assets}
}

// GET /media/avatars/{assetName}
func (h *MediaHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	assetName := strings.TrimSpace(chi.URLParam(r, "assetName"))
	if assetName == "" || strings.ContainsAny(assetName, "/\\") {
		notFound(w, "Media not found")
		return
	}

	file, err := h.assets.Open(filepath.ToSlash(filepath.Join("avatars", assetName)))
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, assets.ErrInvalidPath) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		internalError(w)
		return
	}

	if contentType := mime.TypeByExtension(filepath.Ext(assetName)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	// Stored names embed a random component, so content at a given path
	// never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, assetName, info.ModTime(), file)
}
