package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/vidscribe/internal/assemblyai"
	"github.com/fmueller/vidscribe/internal/extract"
	"github.com/fmueller/vidscribe/internal/logging"
	"github.com/fmueller/vidscribe/internal/platform"
	"github.com/fmueller/vidscribe/internal/server"
	"github.com/fmueller/vidscribe/internal/transcribe"
	"github.com/fmueller/vidscribe/internal/version"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool

	addr         string
	audioDir     string
	cookieFile   string
	apiKey       string
	apiBaseURL   string
	language     string
	format       string
	pollInterval time.Duration
	pollTimeout  time.Duration

	logger *zap.Logger

	transcribeFn func(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
	serveFn      func(ctx context.Context) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		addr:         ":8080",
		language:     "auto",
		format:       "text",
		pollInterval: transcribe.DefaultPollInterval,
		pollTimeout:  transcribe.DefaultPollTimeout,
		apiKey:       os.Getenv("ASSEMBLYAI_API_KEY"),
	}
	app.transcribeFn = app.transcribeURL
	app.serveFn = app.runServe

	cmd := &cobra.Command{
		Use:           "vidscribe",
		Short:         "Turn video URLs into transcripts with yt-dlp and a remote transcription API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.language = sanitizeLanguage(app.language)
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.runServe
			}
			return serveFn(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindAPIFlags(cmd, app)
	bindPipelineFlags(cmd, app)
	cmd.Flags().StringVar(&app.addr, "addr", app.addr, "HTTP listen address for the server")

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindAPIFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.apiKey, "api-key", app.apiKey, "AssemblyAI API key (defaults to ASSEMBLYAI_API_KEY)")
	cmd.PersistentFlags().StringVar(&app.apiBaseURL, "api-base-url", app.apiBaseURL, "Override the transcription API base URL")
	_ = cmd.PersistentFlags().MarkHidden("api-base-url")
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.audioDir, "audio-dir", app.audioDir, "Directory for transient audio files")
	cmd.PersistentFlags().StringVar(&app.cookieFile, "cookies", app.cookieFile, "Netscape cookie file for age or region gated videos")
	cmd.PersistentFlags().DurationVar(&app.pollInterval, "poll-interval", app.pollInterval, "Delay between transcription job status checks")
	cmd.PersistentFlags().DurationVar(&app.pollTimeout, "poll-timeout", app.pollTimeout, "Give up on a transcription job after this long")
}

func (a *appState) buildService() (*transcribe.Service, error) {
	apiKey := strings.TrimSpace(a.apiKey)
	if apiKey == "" {
		return nil, errors.New("transcription api key is missing; set --api-key or ASSEMBLYAI_API_KEY")
	}

	client, err := assemblyai.NewClient(assemblyai.Options{
		BaseURL: a.apiBaseURL,
		APIKey:  apiKey,
		Logger:  a.log(),
	})
	if err != nil {
		return nil, err
	}

	audioDir, err := platform.ResolveAudioDir(a.audioDir)
	if err != nil {
		return nil, err
	}

	cookieFile := a.resolveCookieFile()

	return transcribe.NewService(transcribe.Options{
		Strategies:   extract.DefaultStrategies(cookieFile, a.log()),
		API:          client,
		AudioDir:     audioDir,
		CookieFile:   cookieFile,
		PollInterval: a.pollInterval,
		PollTimeout:  a.pollTimeout,
		Logger:       a.log(),
	})
}

// resolveCookieFile treats a configured but unreadable cookie file as a
// warning, not an error: most videos download fine without cookies.
func (a *appState) resolveCookieFile() string {
	if a.cookieFile == "" {
		return ""
	}

	if _, err := os.Stat(a.cookieFile); err != nil {
		a.log().Warn("cookie file not readable; continuing without cookies",
			zap.String("path", a.cookieFile),
			zap.Error(err),
		)
		return ""
	}

	return a.cookieFile
}

func (a *appState) healthReport() server.Health {
	health := server.Health{
		Status:           "ok",
		APIKeyConfigured: strings.TrimSpace(a.apiKey) != "",
	}

	if _, err := exec.LookPath("yt-dlp"); err == nil {
		health.YTDLP = true
	}
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		health.FFmpeg = true
	}

	if !health.APIKeyConfigured || (!health.YTDLP && !health.FFmpeg) {
		health.Status = "degraded"
	}

	return health
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
