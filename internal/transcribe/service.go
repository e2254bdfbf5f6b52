// Package transcribe orchestrates one request: extract audio from a video
// URL, run it through the remote transcription API, and clean up after
// itself no matter how the request ends.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/vidscribe/internal/assemblyai"
	"github.com/fmueller/vidscribe/internal/extract"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 30 * time.Minute
)

// Format selects the shape of the returned transcript.
type Format string

const (
	FormatText Format = "text"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

func ParseFormat(input string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "text":
		return FormatText, nil
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unsupported transcript format %q", input)
	}
}

type Request struct {
	URL      string
	Language string
	Format   string
}

type Result struct {
	Transcript string
	Format     Format
}

// API is the slice of the transcription client the orchestrator drives.
type API interface {
	Upload(ctx context.Context, path string) (string, error)
	CreateTranscript(ctx context.Context, audioURL, languageCode string) (string, error)
	GetTranscript(ctx context.Context, id string) (assemblyai.Transcript, error)
	Subtitles(ctx context.Context, id string, format assemblyai.SubtitleFormat) (string, error)
}

type Options struct {
	Strategies   []extract.Strategy
	API          API
	AudioDir     string
	CookieFile   string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Logger       *zap.Logger
}

type Service struct {
	strategies   []extract.Strategy
	api          API
	audioDir     string
	cookieFile   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger

	extractFn func(ctx context.Context, req extract.Request) (extract.Artifact, error)
	newID     func() string
}

func NewService(opts Options) (*Service, error) {
	if opts.API == nil {
		return nil, errors.New("transcription api client is required")
	}
	if strings.TrimSpace(opts.AudioDir) == "" {
		return nil, errors.New("audio directory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	s := &Service{
		strategies:   opts.Strategies,
		api:          opts.API,
		audioDir:     opts.AudioDir,
		cookieFile:   opts.CookieFile,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
		newID:        uuid.NewString,
	}
	s.extractFn = func(ctx context.Context, req extract.Request) (extract.Artifact, error) {
		return extract.ExtractWithFallback(ctx, s.strategies, req, s.logger)
	}

	return s, nil
}

// Transcribe runs the full pipeline for one request. The local audio file is
// removed before this returns, on every path.
func (s *Service) Transcribe(ctx context.Context, req Request) (Result, error) {
	videoURL := strings.TrimSpace(req.URL)
	if videoURL == "" {
		return Result{}, &Error{Category: CategoryBadRequest, Message: "missing video url"}
	}

	format, err := ParseFormat(req.Format)
	if err != nil {
		return Result{}, &Error{Category: CategoryBadRequest, Message: err.Error(), Err: err}
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return Result{}, &Error{Category: CategoryInternal, Message: "could not prepare audio directory", Err: err}
	}

	// Artifact names come from a fresh id per request, never from the video
	// id: concurrent requests for the same video must not share a file.
	outputPath := filepath.Join(s.audioDir, fmt.Sprintf("audio-%s.mp3", s.newID()))
	defer s.removeArtifact(outputPath)

	artifact, err := s.extractFn(ctx, extract.Request{
		URL:        videoURL,
		CookieFile: s.cookieFile,
		OutputPath: outputPath,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &Error{Category: CategoryInternal, Message: "request cancelled", Err: err}
		}
		return Result{}, &Error{Category: CategoryExtractionFailed, Message: "could not download audio from the video url", Err: err}
	}

	uploadURL, err := s.api.Upload(ctx, artifact.Path)
	if err != nil {
		return Result{}, upstreamError("could not upload audio for transcription", err)
	}

	jobID, err := s.api.CreateTranscript(ctx, uploadURL, req.Language)
	if err != nil {
		return Result{}, upstreamError("could not start the transcription job", err)
	}

	s.logger.Info("transcription job created",
		zap.String("job_id", jobID),
		zap.String("url", videoURL),
		zap.String("format", string(format)),
	)

	transcript, err := s.waitForTranscript(ctx, jobID)
	if err != nil {
		return Result{}, err
	}

	if format == FormatText {
		return Result{Transcript: transcript.Text, Format: format}, nil
	}

	document, err := s.api.Subtitles(ctx, jobID, assemblyai.SubtitleFormat(format))
	if err != nil {
		return Result{}, upstreamError("could not fetch the subtitle document", err)
	}

	return Result{Transcript: document, Format: format}, nil
}

func (s *Service) waitForTranscript(ctx context.Context, jobID string) (assemblyai.Transcript, error) {
	deadline := time.Now().Add(s.pollTimeout)

	for {
		transcript, err := s.api.GetTranscript(ctx, jobID)
		if err != nil {
			return assemblyai.Transcript{}, upstreamError("could not check the transcription job", err)
		}

		switch transcript.Status {
		case assemblyai.StatusCompleted:
			return transcript, nil
		case assemblyai.StatusError:
			return assemblyai.Transcript{}, &Error{
				Category: CategoryUpstreamFailed,
				Message:  fmt.Sprintf("transcription failed: %s", transcript.Error),
			}
		}

		if time.Now().After(deadline) {
			return assemblyai.Transcript{}, &Error{
				Category: CategoryTimeout,
				Message:  fmt.Sprintf("transcription job did not finish within %s", s.pollTimeout),
			}
		}

		s.logger.Debug("transcription job still running",
			zap.String("job_id", jobID),
			zap.String("status", string(transcript.Status)),
		)

		select {
		case <-time.After(s.pollInterval):
		case <-ctx.Done():
			return assemblyai.Transcript{}, &Error{Category: CategoryInternal, Message: "request cancelled", Err: ctx.Err()}
		}
	}
}

func (s *Service) removeArtifact(path string) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	s.logger.Warn("failed to remove audio artifact", zap.String("path", path), zap.Error(err))
}

func upstreamError(message string, err error) *Error {
	return &Error{Category: CategoryUpstreamFailed, Message: message, Err: err}
}
