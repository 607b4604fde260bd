package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/gitrevmissing/internal/missing"
	"github.com/gitrevmissing/pkg/models"
)

// Runner runs one missing-commit request
type Runner interface {
	Run(ctx context.Context, req missing.Request) (*models.Report, error)
}

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	port   int
	runner Runner
	logger zerolog.Logger
	spec   *openapi3.T
}

// MissingRequest is the body of POST /api/v1/missing
type MissingRequest struct {
	CompareURL string `json:"compareUrl"`
	Token      string `json:"token,omitempty"`
	Months     int    `json:"months,omitempty"`
}

// MissingResponse lists the missing and suspicious commits of one comparison
type MissingResponse struct {
	CompareURL string                `json:"compareUrl"`
	Clean      bool                  `json:"clean"`
	Commits    []models.CommitRecord `json:"commits"`
	Suspicious []models.CommitRecord `json:"suspiciousCommits,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server
func NewServer(port int, runner Runner, logger zerolog.Logger) (*Server, error) {
	spec, err := LoadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("Request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	server := &Server{
		echo:   e,
		port:   port,
		runner: runner,
		logger: logger,
		spec:   spec,
	}

	server.setupRoutes()

	return server, nil
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.spec)
	})
	v1.POST("/missing", s.findMissing)
}

// Handler exposes the routes for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until interrupted, then shuts down gracefully
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.port).Msg("Starting API server")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) findMissing(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
	}
	if err := validateBody(s.spec, "MissingRequest", body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
	}
	var req MissingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	report, err := s.runner.Run(c.Request().Context(), missing.Request{
		CompareURL: req.CompareURL,
		Token:      req.Token,
		Months:     req.Months,
	})
	if err != nil {
		status := errorStatus(err)
		s.logger.Error().Err(err).Int("status", status).Str("compare_url", req.CompareURL).Msg("Missing commit lookup failed")
		return c.JSON(status, ErrorResponse{Error: err.Error()})
	}

	resp := MissingResponse{
		CompareURL: req.CompareURL,
		Clean:      report.IsClean(),
		Commits:    report.Missing,
		Suspicious: report.Suspicious,
	}
	if resp.Commits == nil {
		resp.Commits = []models.CommitRecord{}
	}
	return c.JSON(http.StatusOK, resp)
}

// errorStatus maps the error taxonomy onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest
	// providers wrap timeouts in ErrLookup
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrLookup):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
