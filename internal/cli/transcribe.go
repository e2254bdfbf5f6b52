package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/vidscribe/internal/transcribe"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <video-url>",
		Short: "Transcribe a single video URL and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				transcribeFn = app.transcribeURL
			}

			app.log().Info("transcribing...",
				zap.String("url", args[0]),
				zap.String("language", app.language),
				zap.String("format", app.format),
			)
			stopSpinner := startSpinner(app.progressEnabled(), "Transcribing")
			started := time.Now()

			result, err := transcribeFn(cmd.Context(), transcribe.Request{
				URL:      args[0],
				Language: app.language,
				Format:   app.format,
			})
			stopSpinner()
			if err != nil {
				app.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
				return err
			}
			app.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

			fmt.Fprintln(cmd.OutOrStdout(), result.Transcript)
			return nil
		},
	}

	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (auto|en|es|...) for transcription")
	cmd.Flags().StringVar(&app.format, "format", app.format, "Transcript format: text|srt|vtt")

	return cmd
}

func (a *appState) transcribeURL(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	service, err := a.buildService()
	if err != nil {
		return transcribe.Result{}, err
	}
	return service.Transcribe(ctx, req)
}
