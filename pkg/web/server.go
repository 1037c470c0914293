// Package web serves the public festival site, the admin area and the
// live-search socket.
package web

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/madhesh-litfest/mlf/pkg/admin"
	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/config"
	"github.com/madhesh-litfest/mlf/pkg/content"
	"github.com/madhesh-litfest/mlf/pkg/logging"
	"github.com/madhesh-litfest/mlf/pkg/media"
	"github.com/madhesh-litfest/mlf/pkg/storage"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

const (
	sessionCookieName = "mlf_admin"
	// publicPageSize is the number of speaker cards per public page.
	publicPageSize = 8
	// homeSpeakerLimit caps the speakers shown on the landing page.
	homeSpeakerLimit = 8
	// tokenRefreshWindow is how close to expiry a backend access token may
	// get before an admin request refreshes it.
	tokenRefreshWindow = 5 * time.Minute
)

// SessionStore persists admin web sessions. *storage.Store implements it.
type SessionStore interface {
	CreateWebSession(id string, sess *backend.Session, expires time.Time) error
	GetWebSession(id string) (*storage.WebSession, error)
	UpdateWebSessionTokens(id string, sess *backend.Session) error
	TouchWebSession(id string) error
	DeleteWebSession(id string) error
	CleanupExpiredWebSessions(now time.Time) (int64, error)
	CountActiveWebSessions(now time.Time) (int, error)
}

// Options wires a Server.
type Options struct {
	Config   *config.Config
	Backend  backend.Backend
	Sessions SessionStore
	// MediaDir is served under /media/ when the local driver keeps objects
	// on disk. Empty disables the route.
	MediaDir string
	Notifier admin.Notifier
	Logger   *zap.Logger
	Version  string
}

// Server is the festival HTTP server.
type Server struct {
	cfg      *config.Config
	backend  backend.Backend
	sessions SessionStore
	mediaDir string
	version  string
	logger   *zap.Logger

	speakers *admin.Service[content.SpeakerCard, content.SpeakerInput]
	partners *admin.Service[content.PartnerCard, content.PartnerInput]
	uploader *media.Uploader

	pages        *renderer
	loginLimiter *loginLimiter
	now          func() time.Time

	router     chi.Router
	httpServer *http.Server
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("web: session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	adminOpts := []admin.Option{
		admin.WithLogger(logger),
		admin.WithDevDiagnostics(cfg.Logging.Dev),
	}
	if opts.Notifier != nil {
		adminOpts = append(adminOpts, admin.WithNotifier(opts.Notifier))
	}

	s := &Server{
		cfg:      cfg,
		backend:  opts.Backend,
		sessions: opts.Sessions,
		mediaDir: strings.TrimSpace(opts.MediaDir),
		version:  opts.Version,
		logger:   logger.Named(logging.ComponentWeb),
		speakers: admin.Speakers(opts.Backend, adminOpts...),
		partners: admin.Partners(opts.Backend, adminOpts...),
		uploader: media.NewUploader(opts.Backend.Objects,
			media.WithBucket(cfg.Backend.Bucket),
			media.WithLogger(logger.Named(logging.ComponentMedia)),
		),
		pages:        pages,
		loginLimiter: newLoginLimiter(cfg.Server.LoginAttemptsPerMinute, cfg.Server.LoginBurst),
		now:          time.Now,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(s.requestIDMiddleware)
	router.Use(s.accessLogMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.sessionMiddleware)
	router.Use(s.preferencesMiddleware)

	router.Get("/", s.handleHome)
	router.Get("/speakers", s.handleSpeakers)
	router.Get("/speakers/{id}", s.handleSpeakerDetail)
	router.Post(disclaimerPath, s.handleDismissDisclaimer)
	router.Get("/ws/search", s.handleLiveSearch)
	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", telemetry.Handler())
	router.Handle("/static/*", staticHandler())
	if s.mediaDir != "" {
		router.Handle(storage.MediaPrefix+"*", http.StripPrefix(strings.TrimSuffix(storage.MediaPrefix, "/"), mediaHandler(s.mediaDir)))
	}

	router.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleAdminIndex)
			r.Get("/dashboard", s.handleDashboard)
			r.Post("/logout", s.handleLogout)
			r.Post("/uploads", s.handleUpload)
			r.Route("/speakers", newSpeakerAdmin(s).routes)
			r.Route("/partners", newPartnerAdmin(s).routes)
		})
	})

	router.NotFound(s.handleNotFound)
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	// Wrap router with H2C handler to support HTTP/2 cleartext connections
	// behind reverse proxies.
	h2s := &http2.Server{}
	h2cHandler := h2c.NewHandler(s.router, h2s)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	go s.sweepSessions(ctx)

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("serving festival site",
			zap.String("listen", s.cfg.Server.Listen),
			zap.String("backend", s.backend.Name),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// sweepSessions drops expired web sessions and keeps the gauge current.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		s.refreshSessionGauge()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.sessions.CleanupExpiredWebSessions(s.now()); err != nil {
				s.logger.Warn("web session cleanup failed", zap.Error(err))
			} else if n > 0 {
				s.logger.Debug("expired web sessions removed", zap.Int64("count", n))
			}
		}
	}
}

func (s *Server) refreshSessionGauge() {
	n, err := s.sessions.CountActiveWebSessions(s.now())
	if err != nil {
		return
	}
	telemetry.SetWebSessions(n)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	payload := map[string]any{
		"status":  "ok",
		"backend": s.backend.Name,
		"version": s.version,
	}
	if _, err := s.sessions.CountActiveWebSessions(s.now()); err != nil {
		status = http.StatusServiceUnavailable
		payload["status"] = "degraded"
		payload["error"] = err.Error()
	}
	respondJSON(w, status, payload)
}
