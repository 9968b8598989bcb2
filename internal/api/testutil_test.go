package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"atrium/internal/assets"
	"atrium/internal/auth"
	"atrium/internal/config"
	"atrium/internal/db"
)

const testPassword = "Sup3rsecret"

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			Environment: config.EnvDevelopment,
		},
		Database: config.DatabaseConfig{
			Path: filepath.Join(t.TempDir(), "test.db"),
		},
		Auth: config.AuthConfig{
			CookieName:        "atrium_session",
			SessionTTL:        time.Hour,
			PasswordMinLength: 8,
			BcryptCost:        4,
		},
		Storage: config.StorageConfig{
			AssetRoot:         t.TempDir(),
			UploadMaxBytes:    64 << 10,
			AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		},
	}
}

type testEnv struct {
	server *Server
	config *config.Config
	db     *db.DB
	users  *db.UserRepository
	assets *assets.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := newTestConfig(t)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	assetStore, err := assets.NewStore(cfg.Storage.AssetRoot, cfg.Storage.UploadMaxBytes, cfg.Storage.AllowedExtensions)
	if err != nil {
		t.Fatalf("assets.NewStore() error = %v", err)
	}

	server, err := NewServer(cfg, database, assetStore)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testEnv{
		server: server,
		config: cfg,
		db:     database,
		users:  db.NewUserRepository(database),
		assets: assetStore,
	}
}

// registerUser creates an account directly through the repository.
func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()

	hasher := auth.NewPasswordHasher(e.config.Auth.BcryptCost)
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	user, err := e.users.Create(context.Background(), email, hash, nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user.ID
}

// login authenticates through the API and returns the session cookie.
func (e *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()

	rr := e.doJSON(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"`+email+`","password":"`+testPassword+`"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	cookie := sessionCookieFrom(t, rr, e.config.Auth.CookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("login did not set a session cookie")
	}
	return cookie
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doUpload(t *testing.T, filename string, content []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("part.Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/picture", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// sessionCookieFrom returns the last Set-Cookie matching name. When a handler
// replaces a cookie set earlier in the middleware chain, browsers apply the
// later one, so the last match reflects what the client ends up with.
func sessionCookieFrom(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	var found *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			found = cookie
		}
	}
	return found
}

func decodeErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return resp
}
