// Package server exposes the pipeline over HTTP: document upload,
// querying, collection management, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"sahayak/internal/domain"
	"sahayak/internal/port"
	"sahayak/internal/usecase"
)

// Server hosts the HTTP API on top of the ingest, ask and status flows.
type Server struct {
	echo     *echo.Echo
	ingest   *usecase.IngestUseCase
	ask      *usecase.AskUseCase
	status   *usecase.StatusUseCase
	index    port.Index
	sessions *sessionRegistry
	metrics  *Metrics
	logger   *slog.Logger
}

// Options carries the optional server collaborators.
type Options struct {
	Metrics *Metrics
	Logger  *slog.Logger
}

func New(ingest *usecase.IngestUseCase, ask *usecase.AskUseCase, status *usecase.StatusUseCase, index port.Index, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		ingest:   ingest,
		ask:      ask,
		status:   status,
		index:    index,
		sessions: newSessionRegistry(),
		metrics:  metrics,
		logger:   logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1")
	api.POST("/documents", s.handleIngestDocument)
	api.GET("/documents", s.handleListDocuments)
	api.DELETE("/documents", s.handleClearDocuments)
	api.POST("/query", s.handleQuery)
	api.GET("/status", s.handleStatus)

	s.echo = e
	return s
}

// handleError maps domain sentinels onto HTTP statuses and renders the
// one-field JSON error body every endpoint shares.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		msg = fmt.Sprint(httpErr.Message)
	case errors.Is(err, domain.ErrInvalidConfiguration):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrModelMismatch):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingService), errors.Is(err, domain.ErrGenerationUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		code = http.StatusConflict
		msg = "query superseded or canceled"
	}

	s.logger.Error("request failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"status", code,
		"error", err,
	)
	if !c.Response().Committed {
		if jsonErr := c.JSON(code, map[string]string{"error": msg}); jsonErr != nil {
			s.logger.Error("failed to write error response", "error", jsonErr)
		}
	}
}

func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
