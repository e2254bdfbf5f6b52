package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// YTDLPStrategy downloads the best available audio stream with yt-dlp and
// transcodes it to mp3. With MirrorHost set, the video URL is rewritten to
// that host before the download.
type YTDLPStrategy struct {
	Executable string
	MirrorHost string
	CookieFile string
	Logger     *zap.Logger
}

func NewYTDLPStrategy(mirrorHost, cookieFile string, logger *zap.Logger) *YTDLPStrategy {
	return &YTDLPStrategy{
		MirrorHost: mirrorHost,
		CookieFile: cookieFile,
		Logger:     logger,
	}
}

func (s *YTDLPStrategy) Name() string {
	if s.MirrorHost != "" {
		return "yt-dlp@" + s.MirrorHost
	}
	return "yt-dlp"
}

func (s *YTDLPStrategy) Available() bool {
	return commandAvailable(s.executable())
}

func (s *YTDLPStrategy) Extract(ctx context.Context, req Request) (Artifact, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Artifact{}, errors.New("video url is required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Artifact{}, errors.New("output path is required")
	}

	target := req.URL
	if s.MirrorHost != "" {
		rewritten, err := RewriteHost(req.URL, s.MirrorHost)
		if err != nil {
			return Artifact{}, SoftFailure(fmt.Errorf("mirror not applicable: %w", err))
		}
		target = rewritten
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create audio directory: %w", err)
	}

	cookieFile := s.CookieFile
	if cookieFile == "" {
		cookieFile = req.CookieFile
	}

	args := buildYTDLPArgs(target, req.OutputPath, cookieFile)

	cmd := exec.CommandContext(ctx, s.executable(), args...)
	var stderr bytes.Buffer
	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &stderr

	s.log().Debug("running yt-dlp", zap.String("target", target), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}

		errText := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && isDownloadError(errText) {
			return Artifact{}, SoftFailure(fmt.Errorf("yt-dlp download failed: %s", lastStderrLine(errText)))
		}

		return Artifact{}, fmt.Errorf("yt-dlp failed: %w (%s)", err, errText)
	}

	return artifactAt(req.OutputPath)
}

func (s *YTDLPStrategy) executable() string {
	if s.Executable != "" {
		return s.Executable
	}
	return "yt-dlp"
}

func (s *YTDLPStrategy) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func buildYTDLPArgs(target, outputPath, cookieFile string) []string {
	// yt-dlp replaces the extension after extracting audio, so the output
	// template must not hard-code one.
	template := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".%(ext)s"

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--force-ipv4",
		"--user-agent", browserUserAgent,
		"--geo-bypass",
		"--no-playlist",
		"--no-progress",
		"--output", template,
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	return append(args, target)
}

// isDownloadError reports whether yt-dlp itself diagnosed the failure, e.g. a
// blocked or removed video. Those are worth retrying against a mirror; exits
// without a diagnostic are not.
func isDownloadError(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "ERROR:") {
			return true
		}
	}
	return false
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}
