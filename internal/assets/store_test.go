package assets

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), maxBytes, []string{".jpg", ".jpeg", ".png"})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.Save(context.Background(), "usr_1", "animation.gif", bytes.NewReader([]byte("gif bytes")))
	if !errors.Is(err, ErrDisallowedExtension) {
		t.Fatalf("Save() error = %v, want ErrDisallowedExtension", err)
	}
}

func TestSaveRejectsMissingExtension(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.Save(context.Background(), "usr_1", "avatar", bytes.NewReader([]byte("bytes")))
	if !errors.Is(err, ErrDisallowedExtension) {
		t.Fatalf("Save() error = %v, want ErrDisallowedExtension", err)
	}
}

func TestSaveRejectsEmptyPayload(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.Save(context.Background(), "usr_1", "avatar.png", bytes.NewReader(nil))
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("Save() error = %v, want ErrEmptyUpload", err)
	}
}

func TestSaveRejectsOversizedPayload(t *testing.T) {
	store := newTestStore(t, 16)

	_, err := store.Save(context.Background(), "usr_1", "avatar.png", bytes.NewReader(bytes.Repeat([]byte{'a'}, 32)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Save() error = %v, want ErrFileTooLarge", err)
	}
}

func TestSaveStoresFileUnderGeneratedName(t *testing.T) {
	store := newTestStore(t, 1024)

	stored, err := store.Save(context.Background(), "usr_1", "../../../etc/passwd.png", bytes.NewReader([]byte("image bytes")))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasPrefix(stored.Name, "usr_1_") {
		t.Fatalf("stored.Name = %q, want usr_1_ prefix", stored.Name)
	}
	if strings.Contains(stored.Name, "passwd") {
		t.Fatalf("stored.Name = %q contains client-supplied filename", stored.Name)
	}
	if stored.SizeBytes != int64(len("image bytes")) {
		t.Fatalf("stored.SizeBytes = %d, want %d", stored.SizeBytes, len("image bytes"))
	}

	file, err := store.Open(stored.Ref)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer file.Close()
}

func TestSaveGeneratesUniqueNamesForSameOwner(t *testing.T) {
	store := newTestStore(t, 1024)

	first, err := store.Save(context.Background(), "usr_1", "avatar.png", bytes.NewReader([]byte("one")))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := store.Save(context.Background(), "usr_1", "avatar.png", bytes.NewReader([]byte("two")))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if first.Ref == second.Ref {
		t.Fatalf("both saves produced ref %q", first.Ref)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t, 1024)

	stored, err := store.Save(context.Background(), "usr_1", "avatar.png", bytes.NewReader([]byte("image bytes")))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(stored.Ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(stored.Ref); err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}

	if _, err := store.Open(stored.Ref); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open() after delete error = %v, want os.ErrNotExist", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := newTestStore(t, 1024)

	for _, ref := range []string{"../secrets.txt", "/etc/passwd", "avatars/../../secrets.txt", "."} {
		if _, err := store.Open(ref); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Open(%q) error = %v, want ErrInvalidPath", ref, err)
		}
	}
}

func TestAllowedExtensionIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t, 1024)

	if !store.AllowedExtension("photo.PNG") {
		t.Fatal("AllowedExtension(photo.PNG) = false, want true")
	}
	if store.AllowedExtension("photo.gif") {
		t.Fatal("AllowedExtension(photo.gif) = true, want false")
	}
}
