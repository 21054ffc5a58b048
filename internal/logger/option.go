package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating file sink.
type FileOptions struct {
	// Path is the log file location. An empty path disables the sink.
	Path string
	// MaxSizeMB is the size that triggers rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept.
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int
}

// Default rotation limits for the file sink.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14
)

// WithRotatingFile tees every entry into a lumberjack-rotated file using a
// plain (uncolored) console encoding. It is a no-op when opts.Path is empty.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithRotatingFile(opts FileOptions) zap.Option {
	if opts.Path == "" {
		return zap.WrapCore(func(core zapcore.Core) zapcore.Core { return core })
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}

	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}

	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = DefaultMaxAgeDays
	}

	writer := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		fileCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalLevelEncoder)),
			zapcore.AddSync(writer),
			level,
		)

		return zapcore.NewTee(core, fileCore)
	})
}
