// Package api is the device's HTTP configuration surface: the embedded setup
// page, the status/config/refresh/restart endpoints, the framebuffer export,
// and the firmware-update upload.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/internal/display"
	"github.com/Alpha162/armoured-candles/internal/metrics"
	"github.com/Alpha162/armoured-candles/internal/store"
	"github.com/Alpha162/armoured-candles/internal/ticker"
	"github.com/Alpha162/armoured-candles/pkg/config"
	"github.com/Alpha162/armoured-candles/pkg/logger"
)

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	orch     *ticker.Orchestrator
	settings *store.Store
	display  *display.Display
	met      *metrics.Metrics

	// restart reboots the device; injected so tests do not reboot the CI
	// machine.
	restart func() error

	update updateState
}

// NewServer wires the API over the running orchestrator.
func NewServer(cfg *config.Config, logger *logrus.Logger, orch *ticker.Orchestrator, settings *store.Store, disp *display.Display, met *metrics.Metrics, restart func() error) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		orch:     orch,
		settings: settings,
		display:  disp,
		met:      met,
		restart:  restart,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)
	if s.cfg.Server.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.met.Registry, promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/display", s.handleDisplay).Methods("GET")

	// mutating endpoints require the UI credentials once they are set
	api.Handle("/config", s.requireAuth(http.HandlerFunc(s.handleConfig))).Methods("POST")
	api.Handle("/refresh", s.requireAuth(http.HandlerFunc(s.handleRefresh))).Methods("POST")
	api.Handle("/restart", s.requireAuth(http.HandlerFunc(s.handleRestart))).Methods("POST")
	api.Handle("/update/arm", s.requireAuth(http.HandlerFunc(s.handleUpdateArm))).Methods("POST")
	api.Handle("/update", s.requireAuth(http.HandlerFunc(s.handleUpdate))).Methods("POST")
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Middleware

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Update-Sha256"}),
	)(next)
}

// requireAuth enforces basic auth with the persisted UI credentials. A device
// with no UI user configured is open; the setup flow sets credentials first.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		settings := s.orch.Settings()
		if settings.UIUser == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(settings.UIUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(settings.UIPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="armoured-candles"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

