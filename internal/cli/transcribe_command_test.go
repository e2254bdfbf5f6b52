package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/vidscribe/internal/transcribe"
)

func runTranscribeCmd(t *testing.T, fn func(ctx context.Context, req transcribe.Request) (transcribe.Result, error), args ...string) (string, error) {
	t.Helper()

	app := &appState{
		language:     "auto",
		format:       "text",
		pollInterval: transcribe.DefaultPollInterval,
		pollTimeout:  transcribe.DefaultPollTimeout,
		noProgress:   true,
		transcribeFn: fn,
	}

	cmd := newTranscribeCmd(app)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTranscribeCommandPrintsTranscript(t *testing.T) {
	t.Parallel()

	var got transcribe.Request
	out, err := runTranscribeCmd(t, func(_ context.Context, req transcribe.Request) (transcribe.Result, error) {
		got = req
		return transcribe.Result{Transcript: "hello from the fake", Format: transcribe.FormatText}, nil
	}, "https://youtu.be/abc123")

	require.NoError(t, err)
	require.Contains(t, out, "hello from the fake")
	require.Equal(t, "https://youtu.be/abc123", got.URL)
	require.Equal(t, "auto", got.Language)
	require.Equal(t, "text", got.Format)
}

func TestTranscribeCommandPassesLanguageAndFormat(t *testing.T) {
	t.Parallel()

	var got transcribe.Request
	_, err := runTranscribeCmd(t, func(_ context.Context, req transcribe.Request) (transcribe.Result, error) {
		got = req
		return transcribe.Result{Transcript: "1\n00:00:00,000 --> 00:00:01,000\nhi\n", Format: transcribe.FormatSRT}, nil
	}, "https://youtu.be/abc123", "--language", "en", "--format", "srt")

	require.NoError(t, err)
	require.Equal(t, "en", got.Language)
	require.Equal(t, "srt", got.Format)
}

func TestTranscribeCommandPropagatesErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("extraction failed: every strategy failed")
	_, err := runTranscribeCmd(t, func(_ context.Context, _ transcribe.Request) (transcribe.Result, error) {
		return transcribe.Result{}, wantErr
	}, "https://youtu.be/abc123")

	require.ErrorIs(t, err, wantErr)
}
