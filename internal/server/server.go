// Package server exposes the transcription pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fmueller/vidscribe/internal/transcribe"
)

// Transcriber is the orchestration entry point the server forwards to.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// Health reports whether the external tools this service shells out to are
// reachable on this host.
type Health struct {
	Status           string `json:"status"`
	YTDLP            bool   `json:"ytdlp"`
	FFmpeg           bool   `json:"ffmpeg"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

type Options struct {
	Service  Transcriber
	Logger   *zap.Logger
	HealthFn func() Health
}

type Server struct {
	echo     *echo.Echo
	service  Transcriber
	logger   *zap.Logger
	healthFn func() Health
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("transcription service is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		service:  opts.Service,
		logger:   logger,
		healthFn: opts.HealthFn,
	}

	e.POST("/api/transcribe", s.handleTranscribe)
	e.GET("/healthz", s.handleHealth)

	return s, nil
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type transcribeRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTranscribe(c echo.Context) error {
	var req transcribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	if req.Language == "" {
		req.Language = "auto"
	}

	result, err := s.service.Transcribe(c.Request().Context(), transcribe.Request{
		URL:      req.URL,
		Language: req.Language,
		Format:   req.Format,
	})
	if err != nil {
		category := transcribe.CategoryOf(err)
		s.logger.Error("transcription request failed",
			zap.String("url", req.URL),
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return c.JSON(statusForCategory(category), errorResponse{Error: transcribe.MessageOf(err)})
	}

	s.logger.Info("transcription request served",
		zap.String("url", req.URL),
		zap.String("format", string(result.Format)),
		zap.Int("transcript_length", len(result.Transcript)),
	)

	return c.JSON(http.StatusOK, transcribeResponse{Transcript: result.Transcript})
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.healthFn == nil {
		return c.JSON(http.StatusOK, Health{Status: "ok"})
	}

	health := s.healthFn()
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, health)
}

func statusForCategory(category transcribe.Category) int {
	switch category {
	case transcribe.CategoryBadRequest, transcribe.CategoryExtractionFailed:
		return http.StatusBadRequest
	case transcribe.CategoryUpstreamFailed:
		return http.StatusBadGateway
	case transcribe.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
