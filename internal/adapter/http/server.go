package adapthttp

import (
	"log/slog"
	"net/http"

	"gallery/internal/app"
	"gallery/internal/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig enables single sign-on through an OpenID Connect provider.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services. It fronts a single client instance, so every request acts on the
// same session.
type Server struct {
	auth       *app.AuthService
	posts      *app.PostService
	oidcConfig OIDCConfig
	webDir     string
	log        *slog.Logger
}

// New creates a Server wired to the given application services. webDir may
// be empty to serve the API only. A nil logger means slog.Default.
func New(auth *app.AuthService, posts *app.PostService, oidcConfig OIDCConfig, webDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{auth: auth, posts: posts, oidcConfig: oidcConfig, webDir: webDir, log: log}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("GET /config", s.handleConfig)

	api.HandleFunc("POST /auth/signup", s.handleSignUp)
	api.HandleFunc("POST /auth/signin", s.handleSignIn)
	api.HandleFunc("POST /auth/admin/signin", s.handleAdminSignIn)
	api.HandleFunc("POST /auth/signout", s.handleSignOut)
	api.HandleFunc("GET /auth/me", s.handleMe)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	api.HandleFunc("GET /posts", s.handlePosts)
	api.Handle("POST /posts", s.requireCreator(http.HandlerFunc(s.handleCreatePost)))
	api.HandleFunc("POST /posts/{id}/like", s.handleToggleLike)
	api.HandleFunc("POST /posts/{id}/comments", s.handleAddComment)

	api.HandleFunc("GET /users/{id}", s.handleUser)
	api.HandleFunc("GET /users/{id}/posts", s.handleUserPosts)
	api.Handle("PUT /users/{id}/role", s.requireCreator(http.HandlerFunc(s.handleSetRole)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", metrics.Handler())
	if s.webDir != "" {
		root.Handle("/", spaFromDisk(s.webDir))
	}

	return s.loggingMiddleware(withNoCache(root))
}
