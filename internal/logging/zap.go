package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the output shape of the process-wide logger. Console mode
// is meant for humans at a terminal, JSON mode for log collectors.
type Options struct {
	Verbose bool
	JSON    bool
}

// New builds a zap logger that writes to stderr so transcripts printed on
// stdout stay clean for piping.
func New(opts Options) (*zap.Logger, error) {
	cfg := consoleConfig()
	if opts.JSON {
		cfg = jsonConfig()
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = !opts.Verbose
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

func consoleConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeCaller = nil
	return cfg
}

func jsonConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
