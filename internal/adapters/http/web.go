// Package web serves the app store over HTTP. GET requests for pages run
// through the shared route table; form posts are plain ServeMux handlers.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"appstore/internal/adapters/blob"
	"appstore/internal/adapters/http/middleware"
	"appstore/internal/adapters/metrics"
	accountStore "appstore/internal/adapters/storage/account"
	appStore "appstore/internal/adapters/storage/app"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	ratingStore "appstore/internal/adapters/storage/rating"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	"appstore/internal/router"
)

// DefaultMaxUploadBytes caps an app file upload.
const DefaultMaxUploadBytes = 512 << 20

// Request body caps. An upload may carry up to MaxUploadBytes of file plus
// multipart framing and the other form fields.
const (
	maxFormBytes   = 1 << 20
	uploadOverhead = 1 << 20
)

// FilesPrefix is the path signed download URLs are served under.
const FilesPrefix = "/files"

// AppStore is the app and version persistence the server needs.
type AppStore interface {
	appStore.Store
	appStore.VersionStore
}

// Stores holds all storage dependencies.
type Stores struct {
	Accounts     accountStore.Store
	Marketplaces marketplaceStore.Store
	Apps         AppStore
	Ratings      ratingStore.Store
	Blobs        blob.Store
}

// Config holds server settings.
type Config struct {
	// CSRFKey is the 32-byte gorilla/csrf authentication key.
	CSRFKey []byte

	SecureCookies  bool
	TrustedOrigins []string

	// PublicURL is the externally visible base URL, used in emailed links.
	PublicURL string

	RatePerSecond  float64
	RateBurst      int
	SlowRequest    time.Duration
	MaxUploadBytes int64
}

// Deps holds the collaborators the server is wired from.
type Deps struct {
	Stores        Stores
	Authenticator auth.Authenticator
	Resolver      *auth.Resolver
	Signer        *blob.URLSigner
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Server owns the route table, the form handlers and the middleware chain.
type Server struct {
	cfg     Config
	stores  Stores
	authn   auth.Authenticator
	res     *auth.Resolver
	guard   *auth.Guard
	signer  *blob.URLSigner
	metrics *metrics.Metrics
	now     func() time.Time

	router   *router.Router
	mux      *http.ServeMux
	views    *views
	cookies  middleware.CookieConfig
	limiter  *middleware.RateLimiter
	handler  http.Handler
	pagesReg *pages
}

// NewServer wires the route table, form handlers and middleware.
// PRE: every field of deps except Now is non-nil; len(cfg.CSRFKey) == 32
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if len(cfg.CSRFKey) != 32 {
		return nil, errors.New("csrf key must be 32 bytes")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = int(cfg.RatePerSecond) * 2
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		stores:  deps.Stores,
		authn:   deps.Authenticator,
		res:     deps.Resolver,
		signer:  deps.Signer,
		metrics: deps.Metrics,
		now:     now,
		views:   v,
		cookies: middleware.CookieConfig{Secure: cfg.SecureCookies, Now: now},
		limiter: middleware.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst, now),
	}
	s.guard = auth.NewGuard(auth.GuardConfig{
		Resolver:  s.res,
		Navigator: auth.NavigatorFunc(redirect),
		Observer:  s.metrics,
	})

	s.pagesReg = &pages{s: s}
	s.router = router.New(router.WithNotFound(routes.NotFound(s.pagesReg)))
	routes.Register(s.router, routes.Deps{
		Guard:     s.guard,
		Resolver:  s.res,
		Navigator: auth.NavigatorFunc(redirect),
		Pages:     s.pagesReg,
	})

	s.mux = http.NewServeMux()
	s.registerRoutes(s.mux)

	s.handler = middleware.Chain(s.mux,
		middleware.Session,
		middleware.CSRF(middleware.CSRFConfig{
			Key:            cfg.CSRFKey,
			Secure:         cfg.SecureCookies,
			TrustedOrigins: cfg.TrustedOrigins,
		}),
		middleware.BodyLimit(middleware.BodyLimitConfig{
			Default: maxFormBytes,
			Limit:   s.bodyLimit,
		}),
		middleware.SecurityHeaders,
		middleware.RateLimit(s.limiter, s.metrics),
		middleware.Timing(middleware.TimingConfig{
			Observer:  s.metrics,
			Route:     s.routeLabel,
			Threshold: cfg.SlowRequest,
		}),
	)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// SweepVisitors forgets rate limiter state for clients idle longer than idle.
func (s *Server) SweepVisitors(idle time.Duration) int {
	return s.limiter.Sweep(idle)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET "+FilesPrefix+"/{key...}", s.handleFile)
	mux.HandleFunc("GET /", s.handlePage)

	mux.HandleFunc("POST /login", s.handleSignIn)
	mux.HandleFunc("POST /signup", s.handleSignUp)
	mux.HandleFunc("POST /logout", s.handleSignOut)
	mux.HandleFunc("POST /reset-password", s.handleResetPassword)

	mux.HandleFunc("POST /app/{id}/ratings", s.handleRateApp)
	mux.HandleFunc("POST /app/{id}/download", s.handleDownload)

	mux.HandleFunc("POST /admin/apps", s.handleSaveApp)
	mux.HandleFunc("POST /admin/apps/{id}", s.handleSaveApp)
	mux.HandleFunc("POST /admin/apps/{id}/delete", s.handleDeleteApp)
	mux.HandleFunc("POST /admin/apps/{id}/file", s.handleUploadFile)
	mux.HandleFunc("POST /admin/apps/{id}/versions", s.handleAddVersion)
	mux.HandleFunc("POST /admin/marketplaces", s.handleSaveMarketplace)
	mux.HandleFunc("POST /admin/marketplaces/{id}", s.handleSaveMarketplace)
	mux.HandleFunc("POST /admin/marketplaces/{id}/delete", s.handleDeleteMarketplace)
}

// bodyLimit raises the body cap for app file uploads.
func (s *Server) bodyLimit(r *http.Request) int64 {
	if r.Method == http.MethodPost && isUploadPath(r.URL.Path) {
		return s.cfg.MaxUploadBytes + uploadOverhead
	}
	return 0
}

// isUploadPath matches /admin/apps/{id}/file.
func isUploadPath(path string) bool {
	rest, ok := strings.CutPrefix(path, "/admin/apps/")
	if !ok {
		return false
	}
	id, ok := strings.CutSuffix(rest, "/file")
	return ok && id != "" && !strings.Contains(id, "/")
}

// routeLabel maps a request to the pattern that served it.
func (s *Server) routeLabel(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern != "GET /" {
		return pattern
	}
	if m, ok := s.router.Match(r.URL.EscapedPath()); ok {
		return m.Pattern
	}
	return "not_found"
}

// handlePage dispatches a GET through the route table.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	if m, ok := s.router.Match(path); ok {
		s.metrics.RouteDispatched(m.Pattern)
	} else {
		s.metrics.RouteDispatched("")
	}

	ctx, ex := withExchange(r.Context(), w, r)
	if err := s.router.Handle(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if ex.written {
			logInternal(err)
			return
		}
		internalError(ex, err)
	}
}
