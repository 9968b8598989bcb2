// Package assets manages profile-picture files on local disk. Stored names
// are never derived from client-supplied filenames; callers get back an
// opaque relative reference that stays inside the asset root.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyUpload         = errors.New("empty upload")
	ErrFileTooLarge        = errors.New("asset file too large")
	ErrDisallowedExtension = errors.New("disallowed file extension")
	ErrInvalidPath         = errors.New("invalid asset path")
)

const avatarsDir = "avatars"

type StoredAsset struct {
	Name      string
	Ref       string
	Extension string
	SizeBytes int64
}

type Store struct {
	rootDir     string
	maxBytes    int64
	allowedExts map[string]struct{}
}

func NewStore(rootDir string, maxBytes int64, allowedExtensions []string) (*Store, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("asset root directory is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max asset bytes must be > 0")
	}
	if len(allowedExtensions) == 0 {
		return nil, fmt.Errorf("at least one allowed extension is required")
	}

	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	if err := os.MkdirAll(filepath.Join(rootDir, avatarsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating asset root directory: %w", err)
	}

	return &Store{
		rootDir:     rootDir,
		maxBytes:    maxBytes,
		allowedExts: allowed,
	}, nil
}

func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// AllowedExtension reports whether the extension of originalName is on the
// allow-list. Only the extension is checked, not the file content; the
// stored bytes are served with a Content-Type derived from this extension.
func (s *Store) AllowedExtension(originalName string) bool {
	_, ok := s.allowedExts[extensionOf(originalName)]
	return ok
}

// Save writes the asset under a fresh collision-resistant name combining the
// owner id with a random component. The file is written to a temp path and
// renamed into place, so a partially-written asset is never reachable.
func (s *Store) Save(_ context.Context, ownerID, originalName string, src io.Reader) (*StoredAsset, error) {
	ext := extensionOf(originalName)
	if _, ok := s.allowedExts[ext]; !ok {
		return nil, ErrDisallowedExtension
	}

	name := fmt.Sprintf("%s_%s%s", ownerID, uuid.NewString(), ext)
	ref := filepath.ToSlash(filepath.Join(avatarsDir, name))
	absPath, err := s.resolvePath(ref)
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), name+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary asset file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing asset file: %w", err)
	}
	if written == 0 {
		return nil, ErrEmptyUpload
	}
	if written > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	if err := tmpFile.Sync(); err != nil {
		return nil, fmt.Errorf("syncing asset file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary asset file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return nil, fmt.Errorf("finalizing asset file: %w", err)
	}

	return &StoredAsset{
		Name:      name,
		Ref:       ref,
		Extension: ext,
		SizeBytes: written,
	}, nil
}

func (s *Store) Open(ref string) (*os.File, error) {
	absPath, err := s.resolvePath(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

// Delete removes the file backing ref. A missing file is not an error;
// callers treat deletion as best-effort.
func (s *Store) Delete(ref string) error {
	absPath, err := s.resolvePath(ref)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting asset file: %w", err)
	}

	return nil
}

func (s *Store) resolvePath(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.rootDir, clean), nil
}

func extensionOf(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}
