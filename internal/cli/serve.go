package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/vidscribe/internal/server"
)

func (a *appState) runServe(ctx context.Context) error {
	service, err := a.buildService()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Service:  service,
		Logger:   a.log(),
		HealthFn: a.healthReport,
	})
	if err != nil {
		return err
	}

	health := a.healthReport()
	if health.Status != "ok" {
		a.log().Warn("starting in degraded state",
			zap.Bool("ytdlp", health.YTDLP),
			zap.Bool("ffmpeg", health.FFmpeg),
			zap.Bool("api_key_configured", health.APIKeyConfigured),
		)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.addr)
	}()

	a.log().Info("listening", zap.String("addr", a.addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.log().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
