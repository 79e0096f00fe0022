// Package server exposes the invoice pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/pipeline"
	"invoiceapi/internal/storage"
)

// Processor runs the pipeline for one request.
type Processor interface {
	Process(ctx context.Context, req *pipeline.Request) pipeline.Response
}

// Options controls the HTTP layer.
type Options struct {
	// RequestTimeout bounds each request context. Zero disables it.
	RequestTimeout time.Duration
	// AllowOrigin is sent as Access-Control-Allow-Origin.
	AllowOrigin string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		RequestTimeout: 120 * time.Second,
		AllowOrigin:    "*",
	}
}

// Server holds the router and its collaborators.
type Server struct {
	processor Processor
	presigner storage.Presigner
	router    *gin.Engine
	options   Options
	log       zerolog.Logger
}

// NewServer creates a server. presigner may be nil, in which case
// /presigned-url answers 500.
func NewServer(processor Processor, presigner storage.Presigner, options Options) *Server {
	if options.AllowOrigin == "" {
		options.AllowOrigin = "*"
	}

	r := gin.New()
	s := &Server{
		processor: processor,
		presigner: presigner,
		router:    r,
		options:   options,
		log:       logger.WithComponent("server"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server.Run: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Run: shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(
		s.requestID(),
		s.accessLog(),
		s.recovery(),
		s.cors(),
		s.timeout(),
	)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.POST("/extract-invoice", s.handleExtractInvoice)
	s.router.POST("/presigned-url", s.handlePresignedURL)

	// Preflight requests are answered by the CORS middleware; these routes
	// only make sure gin does not 404 them first.
	s.router.OPTIONS("/extract-invoice", noContent)
	s.router.OPTIONS("/presigned-url", noContent)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusOK)
}
