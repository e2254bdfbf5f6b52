// Package assemblyai is a minimal client for the AssemblyAI transcription
// API: file upload, transcript creation, status polling, and subtitle export.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.assemblyai.com"

// Status is the remote transcript job state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the job will never change state again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Transcript is the job resource as returned by the API. Text is populated
// once Status is completed; Error once Status is error.
type Transcript struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

type SubtitleFormat string

const (
	SubtitleSRT SubtitleFormat = "srt"
	SubtitleVTT SubtitleFormat = "vtt"
)

// APIError is a non-2xx response from the transcription API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("transcription api returned status %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL           string
	APIKey            string
	HTTPClient        *http.Client
	Logger            *zap.Logger
	RequestsPerSecond float64
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("api key is required")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}, nil
}

// Upload streams the file as a multipart body and returns the upload URL the
// API assigned to it.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	c.logger.Debug("uploading audio", zap.String("path", path))
	body, err := c.do(ctx, http.MethodPost, "/v2/upload", pr, form.FormDataContentType())
	if err != nil {
		return "", err
	}

	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", errors.New("upload response carried no upload_url")
	}

	return parsed.UploadURL, nil
}

// CreateTranscript submits a transcription job for an uploaded resource.
// Language "auto" or empty leaves language detection to the service.
func (c *Client) CreateTranscript(ctx context.Context, audioURL, languageCode string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", errors.New("audio url is required")
	}

	payload := struct {
		AudioURL     string `json:"audio_url"`
		LanguageCode string `json:"language_code,omitempty"`
	}{AudioURL: audioURL}

	if lang := strings.TrimSpace(languageCode); lang != "" && !strings.EqualFold(lang, "auto") {
		payload.LanguageCode = lang
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode transcript request: %w", err)
	}

	c.logger.Debug("creating transcript", zap.String("language_code", payload.LanguageCode))
	body, err := c.do(ctx, http.MethodPost, "/v2/transcript", bytes.NewReader(encoded), "application/json")
	if err != nil {
		return "", err
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("transcript response carried no id")
	}

	return parsed.ID, nil
}

// GetTranscript fetches the current state of a transcript job.
func (c *Client) GetTranscript(ctx context.Context, id string) (Transcript, error) {
	if strings.TrimSpace(id) == "" {
		return Transcript{}, errors.New("transcript id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/v2/transcript/"+id, nil, "")
	if err != nil {
		return Transcript{}, err
	}

	var transcript Transcript
	if err := json.Unmarshal(body, &transcript); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}

	return transcript, nil
}

// Subtitles exports a completed transcript as a timed-caption document.
func (c *Client) Subtitles(ctx context.Context, id string, format SubtitleFormat) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("transcript id is required")
	}

	switch format {
	case SubtitleSRT, SubtitleVTT:
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", format)
	}

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/transcript/%s/%s", id, format), nil, "")
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("authorization", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription api request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}
