// Package server exposes the /sounds HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ingest"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/preview"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/ranking"
)

// SoundLister reads latest-state rows
type SoundLister interface {
	ListSoundsByRegion(ctx context.Context, region string, limit int) ([]database.Sound, error)
}

// Ranker computes period rankings
type Ranker interface {
	GetPeriodRanking(ctx context.Context, q ranking.Query) (ranking.Result, error)
}

// Refresher runs ingestion
type Refresher interface {
	Run(ctx context.Context, opts ingest.Options) ingest.Report
}

// Previews resolves and caches previews
type Previews interface {
	Lookup(ctx context.Context, q preview.Query) preview.Preview
	Resolve(ctx context.Context, region, songID, title string) preview.Preview
	CachePreview(ctx context.Context, req preview.CacheRequest) (bool, error)
}

// Deps are the components behind the handlers
type Deps struct {
	Sounds    SoundLister
	Ranker    Ranker
	Refresher Refresher
	Previews  Previews
}

// Server wraps the HTTP router
type Server struct {
	deps      Deps
	router    *chi.Mux
	config    *config.Config
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a server with its routes installed
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		config: cfg,
		done:   make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

// Close stops the server's background goroutines
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	// Middleware stack (order matters)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Security middleware
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/sounds", func(r chi.Router) {
		r.Use(noStoreMiddleware)

		r.Get("/", s.handleSounds)
		r.With(middleware.Timeout(30*time.Second)).Get("/period", s.handlePeriod)
		r.Get("/preview", s.handlePreview)
		r.Get("/resolve", s.handleResolve)
		r.Post("/cache-preview", s.handleCachePreview)

		r.Group(func(r chi.Router) {
			r.Use(s.cronKeyMiddleware)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/refresh", s.handleRefresh)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": msg})
}
