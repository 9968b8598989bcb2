package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"atrium/internal/assets"
	"atrium/internal/auth"
	"atrium/internal/config"
	"atrium/internal/db"
	"atrium/internal/session"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	assetStore *assets.Store,
) (*Server, error) {
	userRepo := db.NewUserRepository(database)
	sessionRepo := db.NewSessionRepository(database)

	sameSite := http.SameSiteLaxMode
	if cfg.IsProduction() {
		sameSite = http.SameSiteStrictMode
	}
	sessions := session.NewManager(sessionRepo, cfg.Auth.SessionTTL, session.CookieOptions{
		Name:     cfg.Auth.CookieName,
		Secure:   cfg.IsProduction(),
		SameSite: sameSite,
	})

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	policy := auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength}

	authHandler := NewAuthHandler(userRepo, sessions, hasher, policy, cfg.Server.BaseURL)
	userHandler := NewUserHandler(userRepo, sessions, assetStore, cfg.Server.BaseURL)
	uploadHandler := NewUploadHandler(userRepo, assetStore, cfg.Server.BaseURL)
	mediaHandler := NewMediaHandler(assetStore)
	healthHandler := NewHealthHandler(database)

	sessionMiddleware := NewSessionMiddleware(sessions)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Get("/media/avatars/{assetName}", mediaHandler.GetAvatar)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB
			r.With(httprate.LimitByIP(10, time.Minute)).Post("/register", authHandler.Register)
			r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(sessionMiddleware.RequireSession)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(sessionMiddleware.RequireSession)
			r.Post("/me/picture", uploadHandler.UploadProfilePicture)

			r.Group(func(r chi.Router) {
				r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB
				r.Get("/me", userHandler.GetMe)
				r.Put("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
			})
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware admits browser requests from the configured origins, plus
// loopback origins so local frontends work without configuration. The cookie
// only crosses origins when the origin is echoed back explicitly, so the
// wildcard form cannot be used here.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !slices.Contains(allowedOrigins, origin) && !isLoopbackOrigin(origin) {
				writeError(w, http.StatusForbidden, ErrCodeInvalidRequest, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
