// Package web serves the administrative console: configuration editing, SSH
// key management, apply/update actions and the status page.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/offworldlabs/retina-gui/internal/apply"
	"github.com/offworldlabs/retina-gui/internal/audit"
	"github.com/offworldlabs/retina-gui/internal/config"
	"github.com/offworldlabs/retina-gui/internal/layered"
	"github.com/offworldlabs/retina-gui/internal/logging"
	"github.com/offworldlabs/retina-gui/internal/schema"
	"github.com/offworldlabs/retina-gui/internal/sshkeys"
	"github.com/offworldlabs/retina-gui/internal/sysinfo"
	"github.com/offworldlabs/retina-gui/internal/update"
)

// Server is the console HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
	log        *logging.Logger

	registry *schema.Registry
	store    *layered.Store
	runner   *apply.Runner
	keys     *sshkeys.Store
	audit    *audit.Store
	system   *sysinfo.Collector
	mender   *update.Client

	tmpl *template.Template
}

// Deps bundles the collaborators the server renders and drives. Audit may be
// nil; recording is best-effort anyway.
type Deps struct {
	Registry *schema.Registry
	Store    *layered.Store
	Runner   *apply.Runner
	Keys     *sshkeys.Store
	Audit    *audit.Store
	System   *sysinfo.Collector
	Mender   *update.Client
}

// New creates the server.
func New(cfg *config.Config, log *logging.Logger, deps Deps) (*Server, error) {
	if log == nil {
		log = logging.NewNop()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: deps.Registry,
		store:    deps.Store,
		runner:   deps.Runner,
		keys:     deps.Keys,
		audit:    deps.Audit,
		system:   deps.System,
		mender:   deps.Mender,
		tmpl:     tmpl,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/", s.handleIndex)
	r.Get("/config", s.handleConfigPage)
	r.Post("/config/save", s.handleConfigSave)
	r.Post("/config/apply", s.handleConfigApply)
	r.Post("/ssh-keys", s.handleSSHKeyAdd)
	r.Post("/ssh-keys/delete", s.handleSSHKeyDelete)

	// JSON API, also used by other tools on the local network.
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}).Handler)

		r.Get("/system", s.handleSystem)
		r.Get("/update/check", s.handleUpdateCheck)
		r.Post("/update/install", s.handleUpdateInstall)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("starting http server", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the underlying chi router, used by tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// recordAudit writes an audit event without failing the caller's action.
func (s *Server) recordAudit(ctx context.Context, kind audit.Kind, detail string, ok bool) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, kind, detail, ok); err != nil {
		s.log.Warn("audit record failed", slog.String("error", err.Error()))
	}
}
