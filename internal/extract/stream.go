package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	androidVersion     = "20.10.38"
	androidUserAgent   = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
)

// StreamStrategy is the last rung of the ladder: it resolves a direct
// audio-only stream URL through the Innertube player API, downloads it over
// plain HTTP, and transcodes the result to mp3 with ffmpeg.
type StreamStrategy struct {
	HTTPClient *http.Client
	FFmpeg     string
	PlayerURL  string
	Logger     *zap.Logger
}

func NewStreamStrategy(logger *zap.Logger) *StreamStrategy {
	return &StreamStrategy{Logger: logger}
}

func (s *StreamStrategy) Name() string {
	return "innertube-stream"
}

func (s *StreamStrategy) Available() bool {
	return commandAvailable(s.ffmpeg())
}

func (s *StreamStrategy) Extract(ctx context.Context, req Request) (Artifact, error) {
	if strings.TrimSpace(req.OutputPath) == "" {
		return Artifact{}, errors.New("output path is required")
	}

	videoID, err := VideoID(req.URL)
	if err != nil {
		return Artifact{}, SoftFailure(err)
	}

	streamURL, err := s.resolveAudioStream(ctx, videoID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, err
		}
		return Artifact{}, SoftFailure(err)
	}

	intermediate := req.OutputPath + ".source"
	if err := s.downloadStream(ctx, streamURL, intermediate); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, err
		}
		return Artifact{}, SoftFailure(fmt.Errorf("download audio stream: %w", err))
	}
	defer func() {
		_ = os.Remove(intermediate)
	}()

	// A broken transcode of an already-downloaded stream is an environment
	// problem, not a download problem; nothing further up the ladder exists
	// to recover it, so it fails hard.
	if err := s.transcode(ctx, intermediate, req.OutputPath); err != nil {
		return Artifact{}, err
	}

	return artifactAt(req.OutputPath)
}

type innertubePlayerReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubePlayerResp struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData *struct {
		AdaptiveFormats []adaptiveFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type adaptiveFormat struct {
	Itag     int    `json:"itag"`
	MimeType string `json:"mimeType"`
	Bitrate  int    `json:"bitrate"`
	URL      string `json:"url"`
}

func (s *StreamStrategy) resolveAudioStream(ctx context.Context, videoID string) (string, error) {
	payload := innertubePlayerReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     androidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode player request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.playerURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUserAgent)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("player request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("player request returned status %d", resp.StatusCode)
	}

	var player innertubePlayerResp
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return "", fmt.Errorf("decode player response: %w", err)
	}

	if player.PlayabilityStatus != nil && player.PlayabilityStatus.Status != "OK" {
		reason := player.PlayabilityStatus.Reason
		if reason == "" {
			reason = player.PlayabilityStatus.Status
		}
		return "", fmt.Errorf("video %s is not playable: %s", videoID, reason)
	}

	if player.StreamingData == nil {
		return "", fmt.Errorf("video %s has no streaming data", videoID)
	}

	best := pickAudioFormat(player.StreamingData.AdaptiveFormats)
	if best == nil {
		return "", fmt.Errorf("video %s has no audio-only stream", videoID)
	}

	s.log().Debug("resolved audio stream",
		zap.String("video_id", videoID),
		zap.Int("itag", best.Itag),
		zap.String("mime_type", best.MimeType),
		zap.Int("bitrate", best.Bitrate),
	)

	return best.URL, nil
}

func pickAudioFormat(formats []adaptiveFormat) *adaptiveFormat {
	var best *adaptiveFormat
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") || f.URL == "" {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func (s *StreamStrategy) downloadStream(ctx context.Context, streamURL, destination string) error {
	tempPath := destination + ".part"
	_ = os.Remove(tempPath)

	outFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		_ = outFile.Close()
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("User-Agent", androidUserAgent)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return fmt.Errorf("stream body: %w", err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}

	success = true
	return nil
}

func (s *StreamStrategy) transcode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, s.ffmpeg(), args...)
	var stderr bytes.Buffer
	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &stderr

	s.log().Debug("running ffmpeg", zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errText := strings.TrimSpace(stderr.String())
		if errText != "" {
			return fmt.Errorf("ffmpeg transcode failed: %w (%s)", err, errText)
		}
		return fmt.Errorf("ffmpeg transcode failed: %w", err)
	}

	return nil
}

func (s *StreamStrategy) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Minute}
}

func (s *StreamStrategy) ffmpeg() string {
	if s.FFmpeg != "" {
		return s.FFmpeg
	}
	return "ffmpeg"
}

func (s *StreamStrategy) playerURL() string {
	if s.PlayerURL != "" {
		return s.PlayerURL
	}
	return innertubePlayerURL
}

func (s *StreamStrategy) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
