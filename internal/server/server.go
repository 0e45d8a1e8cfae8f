// Package server exposes extraction, scheduling, payment links and ledger
// export over HTTP.
//
// Routes:
//   - GET  /healthz
//   - POST /api/extract            multipart "file" (+ "prompt") or JSON {prompt, base64, mimeType, history}
//   - POST /api/schedule           {lineItems, paymentTerm, lenient}
//   - POST /api/links              {buyerData, invoiceData}
//   - GET  /api/links/:id?term=    stored link with a freshly computed schedule
//   - POST /api/export?format=     csv or xlsx ledger download
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"paylink/internal/extraction"
	"paylink/internal/links"
	"paylink/internal/logger"
	"paylink/internal/schedule"
)

// Options wires the server's collaborators. Extractor may be nil, in which
// case /api/extract answers 503.
type Options struct {
	Schedule  schedule.Engine
	Links     *links.Service
	Extractor extraction.Extractor
}

// Server is the HTTP API.
type Server struct {
	router    *gin.Engine
	schedule  schedule.Engine
	links     *links.Service
	extractor extraction.Extractor
	log       zerolog.Logger
}

// New builds the router with request id, access log and recovery middleware.
func New(opts Options) *Server {
	s := &Server{
		router:    gin.New(),
		schedule:  opts.Schedule,
		links:     opts.Links,
		extractor: opts.Extractor,
		log:       logger.WithComponent("server"),
	}

	s.router.MaxMultipartMemory = extraction.MaxDocumentSizeBytes
	s.router.Use(RequestID(), AccessLog(), Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/extract", s.handleExtract)
		api.POST("/schedule", s.handleSchedule)
		api.POST("/links", s.handleCreateLink)
		api.GET("/links/:id", s.handleOpenLink)
		api.POST("/export", s.handleExport)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
