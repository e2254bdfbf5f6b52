// Package extract turns a video URL into a local audio file by trying an
// ordered ladder of extraction strategies until one succeeds.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrNoStrategyAvailable = errors.New("no extraction strategy available")

// Request describes one audio extraction.
type Request struct {
	URL        string
	CookieFile string
	OutputPath string
}

// Artifact is the audio file a strategy produced.
type Artifact struct {
	Path   string
	Format string
	Size   int64
}

type Strategy interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, req Request) (Artifact, error)
}

// softError marks an anticipated downloader failure that should fall through
// to the next strategy. Anything else aborts the ladder.
type softError struct {
	err error
}

func (e *softError) Error() string { return e.err.Error() }

func (e *softError) Unwrap() error { return e.err }

// SoftFailure wraps err so the ladder treats it as recoverable.
func SoftFailure(err error) error {
	if err == nil {
		return nil
	}
	return &softError{err: err}
}

func IsSoftFailure(err error) bool {
	var soft *softError
	return errors.As(err, &soft)
}

// DefaultStrategies returns the extraction ladder in fallback order: yt-dlp
// against the original host, yt-dlp against each mirror host, then the direct
// stream download with an ffmpeg transcode.
func DefaultStrategies(cookieFile string, logger *zap.Logger) []Strategy {
	strategies := []Strategy{NewYTDLPStrategy("", cookieFile, logger)}
	for _, host := range MirrorHosts {
		strategies = append(strategies, NewYTDLPStrategy(host, cookieFile, logger))
	}
	return append(strategies, NewStreamStrategy(logger))
}

// ExtractWithFallback runs strategies in order and returns the first artifact
// produced. Soft failures fall through; unexpected failures and context
// cancellation abort immediately.
func ExtractWithFallback(ctx context.Context, strategies []Strategy, req Request, logger *zap.Logger) (Artifact, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, strategy := range strategies {
		if !strategy.Available() {
			errs = append(errs, fmt.Errorf("%s: strategy is not available", strategy.Name()))
			continue
		}

		artifact, err := strategy.Extract(ctx, req)
		if err == nil {
			logger.Info("audio extracted",
				zap.String("strategy", strategy.Name()),
				zap.String("path", artifact.Path),
				zap.Int64("size", artifact.Size),
			)
			return artifact, nil
		}

		if cleanupErr := removePartialFile(req.OutputPath); cleanupErr != nil {
			errs = append(errs, fmt.Errorf("%s: cleanup partial file %q: %w", strategy.Name(), req.OutputPath, cleanupErr))
		}

		err = fmt.Errorf("%s: %w", strategy.Name(), err)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, err
		}

		errs = append(errs, err)

		if !IsSoftFailure(err) {
			return Artifact{}, fmt.Errorf("extract audio: %w", errors.Join(errs...))
		}

		logger.Warn("extraction strategy failed, falling back",
			zap.String("strategy", strategy.Name()),
			zap.Error(err),
		)
	}

	if len(errs) == 0 {
		return Artifact{}, ErrNoStrategyAvailable
	}

	return Artifact{}, fmt.Errorf("extract audio with available strategies: %w", errors.Join(errs...))
}

func artifactAt(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("audio file missing after extraction: %w", err)
	}

	return Artifact{
		Path:   path,
		Format: strings.TrimPrefix(filepath.Ext(path), "."),
		Size:   info.Size(),
	}, nil
}

func removePartialFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
