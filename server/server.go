package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/papyrus-app/papyrus/pkg/domain"
	"github.com/papyrus-app/papyrus/pkg/ranker"
)

// Server is the HTTP surface over the ranking core. It adapts requests to
// the store, ranker and scheduler and carries no business logic itself.
type Server struct {
	store   Store
	ranker  Ranker
	fetcher Fetcher
	listen  string
	timeout time.Duration
	version string
	debug   bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Store interface for server operations
type Store interface {
	ListFeeds(ctx context.Context) ([]domain.Feed, error)
	CreateFeed(ctx context.Context, feed *domain.Feed) error
	DeleteFeed(ctx context.Context, feedURL string) error
	ToggleFeedVisibility(ctx context.Context, feedURL string) error
	ToggleLike(ctx context.Context, articleURL string) error
}

// Ranker interface for the paginated article listing and cache control
type Ranker interface {
	Ranked(ctx context.Context, pageNum, itemsPerPage int, refresh bool) (*ranker.Page, error)
	Invalidate()
	InvalidateLikes()
}

// Fetcher retrieves raw feed bytes for the proxy endpoint
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config holds server configuration
type Config struct {
	Listen  string
	Timeout time.Duration
	Version string
	Debug   bool
}

// New initializes a new server instance
func New(store Store, ranker Ranker, fetcher Fetcher, cfg Config) *Server {
	s := &Server{
		store:   store,
		ranker:  ranker,
		fetcher: fetcher,
		listen:  cfg.Listen,
		timeout: cfg.Timeout,
		version: cfg.Version,
		debug:   cfg.Debug,
		router:  routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("papyrus", "papyrus-app", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /feeds", s.listFeedsHandler)
		r.HandleFunc("POST /feeds", s.createFeedHandler)
		r.HandleFunc("DELETE /feeds", s.deleteFeedHandler)
		r.HandleFunc("PUT /feeds/visibility", s.toggleFeedVisibilityHandler)
		r.HandleFunc("GET /articles", s.articlesHandler)
		r.HandleFunc("PUT /articles/like", s.toggleLikeHandler)
		r.HandleFunc("GET /proxy", s.proxyHandler)
	})
}
