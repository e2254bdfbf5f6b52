package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	name      string
	available bool
	err       error
	calls     int
	onExtract func(req Request) (Artifact, error)
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Available() bool { return f.available }

func (f *fakeStrategy) Extract(_ context.Context, req Request) (Artifact, error) {
	f.calls++
	if f.onExtract != nil {
		return f.onExtract(req)
	}
	if f.err != nil {
		return Artifact{}, f.err
	}
	return Artifact{Path: req.OutputPath, Format: "mp3"}, nil
}

func TestExtractWithFallbackStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	primary := &fakeStrategy{name: "primary", available: true}
	fallback := &fakeStrategy{name: "fallback", available: true}

	artifact, err := ExtractWithFallback(context.Background(), []Strategy{primary, fallback}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "mp3", artifact.Format)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 0, fallback.calls)
}

func TestExtractWithFallbackTriesStrategiesInOrderOnSoftFailure(t *testing.T) {
	t.Parallel()

	var order []string
	failing := func(name string) *fakeStrategy {
		s := &fakeStrategy{name: name, available: true}
		s.onExtract = func(Request) (Artifact, error) {
			order = append(order, name)
			return Artifact{}, SoftFailure(errors.New("video unavailable"))
		}
		return s
	}

	last := &fakeStrategy{name: "last", available: true}
	last.onExtract = func(req Request) (Artifact, error) {
		order = append(order, "last")
		return Artifact{Path: req.OutputPath}, nil
	}

	strategies := []Strategy{failing("first"), failing("second"), failing("third"), last}
	_, err := ExtractWithFallback(context.Background(), strategies, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third", "last"}, order)
}

func TestExtractWithFallbackAbortsOnUnexpectedFailure(t *testing.T) {
	t.Parallel()

	primary := &fakeStrategy{name: "primary", available: true, err: errors.New("disk full")}
	fallback := &fakeStrategy{name: "fallback", available: true}

	_, err := ExtractWithFallback(context.Background(), []Strategy{primary, fallback}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.Equal(t, 0, fallback.calls)
}

func TestExtractWithFallbackSkipsUnavailableStrategies(t *testing.T) {
	t.Parallel()

	missing := &fakeStrategy{name: "missing", available: false}
	working := &fakeStrategy{name: "working", available: true}

	_, err := ExtractWithFallback(context.Background(), []Strategy{missing, working}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, missing.calls)
	require.Equal(t, 1, working.calls)
}

func TestExtractWithFallbackAggregatesExhaustedLadder(t *testing.T) {
	t.Parallel()

	first := &fakeStrategy{name: "first", available: true, err: SoftFailure(errors.New("blocked"))}
	second := &fakeStrategy{name: "second", available: true, err: SoftFailure(errors.New("geo restricted"))}

	_, err := ExtractWithFallback(context.Background(), []Strategy{first, second}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "first: ")
	require.Contains(t, err.Error(), "blocked")
	require.Contains(t, err.Error(), "second: ")
	require.Contains(t, err.Error(), "geo restricted")
}

func TestExtractWithFallbackCleansPartialFileBetweenAttempts(t *testing.T) {
	t.Parallel()

	outputPath := filepath.Join(t.TempDir(), "audio.mp3")

	leaky := &fakeStrategy{name: "leaky", available: true}
	leaky.onExtract = func(req Request) (Artifact, error) {
		require.NoError(t, os.WriteFile(req.OutputPath, []byte("partial"), 0o644))
		return Artifact{}, SoftFailure(errors.New("interrupted"))
	}

	witness := &fakeStrategy{name: "witness", available: true}
	witness.onExtract = func(req Request) (Artifact, error) {
		_, statErr := os.Stat(req.OutputPath)
		require.ErrorIs(t, statErr, os.ErrNotExist)
		return Artifact{Path: req.OutputPath}, nil
	}

	_, err := ExtractWithFallback(context.Background(), []Strategy{leaky, witness}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: outputPath,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, witness.calls)
}

func TestExtractWithFallbackStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeStrategy{name: "first", available: true}
	first.onExtract = func(Request) (Artifact, error) {
		cancel()
		return Artifact{}, context.Canceled
	}
	second := &fakeStrategy{name: "second", available: true}

	_, err := ExtractWithFallback(ctx, []Strategy{first, second}, Request{
		URL:        "https://youtube.com/watch?v=abc",
		OutputPath: filepath.Join(t.TempDir(), "audio.mp3"),
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, second.calls)
}

func TestExtractWithFallbackNoStrategies(t *testing.T) {
	t.Parallel()

	_, err := ExtractWithFallback(context.Background(), nil, Request{URL: "https://youtube.com/watch?v=abc"}, nil)
	require.ErrorIs(t, err, ErrNoStrategyAvailable)
}

func TestDefaultStrategiesOrder(t *testing.T) {
	t.Parallel()

	strategies := DefaultStrategies("", nil)
	require.Len(t, strategies, len(MirrorHosts)+2)
	require.Equal(t, "yt-dlp", strategies[0].Name())
	for i, host := range MirrorHosts {
		require.Equal(t, "yt-dlp@"+host, strategies[i+1].Name())
	}
	require.Equal(t, "innertube-stream", strategies[len(strategies)-1].Name())
}

func TestSoftFailureClassification(t *testing.T) {
	t.Parallel()

	require.True(t, IsSoftFailure(SoftFailure(errors.New("boom"))))
	require.False(t, IsSoftFailure(errors.New("boom")))
	require.False(t, IsSoftFailure(nil))
	require.Nil(t, SoftFailure(nil))
}
