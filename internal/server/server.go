// Package server provides the HTTP API for labnoted: hybrid search, AI chat/streaming,
// and OAuth connection management over the core described in SPEC_FULL.md §6.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/oauth"
	"github.com/hyperjump/labnoted/internal/quality"
	"github.com/hyperjump/labnoted/internal/reindex"
	"github.com/hyperjump/labnoted/internal/search"
)

// Server is the HTTP server exposing search, AI routing, and OAuth management.
type Server struct {
	engine   *search.Engine
	router   *ai.Router
	oauth    *oauth.Service
	gate     *quality.Gate
	reindex  *reindex.Driver
	config   *config.ServerConfig
	logger   *zap.Logger
	version  string
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	router *ai.Router,
	oauthSvc *oauth.Service,
	gate *quality.Gate,
	reindexDriver *reindex.Driver,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	version string,
) *Server {
	return &Server{
		engine:  engine,
		router:  router,
		oauth:   oauthSvc,
		gate:    gate,
		reindex: reindexDriver,
		config:  cfg,
		logger:  logger,
		version: version,
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Get("/search", s.handleSearch)
	r.Post("/search/index", s.handleIndexTrigger)
	r.Get("/search/index/status", s.handleIndexStatus)

	r.Post("/ai/chat", s.handleAIChat)
	r.Post("/ai/stream", s.handleAIStream)
	r.Get("/ai/models", s.handleAIModels)
	r.Get("/ai/providers", s.handleAIProviders)

	r.Route("/oauth/{provider}", func(pr chi.Router) {
		pr.Get("/config-status", s.handleOAuthConfigStatus)
		pr.Get("/authorize", s.handleOAuthAuthorize)
		pr.Post("/callback", s.handleOAuthCallback)
		pr.Get("/status", s.handleOAuthStatus)
		pr.Delete("/disconnect", s.handleOAuthDisconnect)
		pr.Post("/device/start", s.handleOAuthDeviceStart)
		pr.Post("/device/poll", s.handleOAuthDevicePoll)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
