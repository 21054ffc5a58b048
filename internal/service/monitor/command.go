package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oshokin/temperature-monitor/internal/config"
	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/service/poller"
	"github.com/oshokin/temperature-monitor/internal/version"
)

// Options controls the monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// EnvFile specifies the dotenv file layered over the YAML settings.
	EnvFile string
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// errUnknownLogLevel is returned for a log level override that does not parse.
var errUnknownLogLevel = errors.New("unknown log level")

// Run polls the sensor and serves the query and health APIs until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}

	// Bind the logger configured by setup, so the file sink sees every entry.
	ctx = withProcessLogger(ctx)

	defer logger.Sync()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	defer a.close()

	httpListener, err := listen(ctx, cfg.HTTPAddress)
	if err != nil {
		return err
	}

	grpcListener, err := listen(ctx, cfg.GRPCAddress)
	if err != nil {
		if httpListener != nil {
			_ = httpListener.Close()
		}

		return err
	}

	logger.InfoKV(ctx, "Temperature monitor started",
		"build", version.Full(),
		"poll_interval", cfg.PollInterval().String(),
		"retention", cfg.RetentionPeriod().String(),
		"threshold", cfg.Alert.Threshold,
		"normal_margin", cfg.Alert.NormalMargin,
	)

	if err = a.serve(ctx, httpListener, grpcListener); err != nil {
		return err
	}

	logger.Info(ctx, "Temperature monitor stopped")

	return nil
}

// RunOnce performs a single tick and returns its result. Alert state starts
// fresh, so a high reading always produces a notification.
func RunOnce(ctx context.Context, opts *Options) (poller.Result, error) {
	cfg, err := setup(opts)
	if err != nil {
		return poller.Result{}, err
	}

	ctx = withProcessLogger(ctx)

	defer logger.Sync()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return poller.Result{}, err
	}

	defer a.close()

	result := a.poller.Tick(ctx)
	logger.InfoKV(ctx, "Tick finished", "status", result.Status, "transition", result.Alert)

	return result, nil
}

// setup loads the configuration and applies the logging settings.
func setup(opts *Options) (*config.Config, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(cfg.Log.Level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.Log.Level)
	}

	logger.SetLevel(level)

	if cfg.Log.File != "" {
		logger.SetLogger(logger.New(nil, logger.WithRotatingFile(logger.FileOptions{Path: cfg.Log.File})))
	}

	return cfg, nil
}

// withProcessLogger replaces any logger in ctx with the global one set up for this run.
func withProcessLogger(ctx context.Context) context.Context {
	return logger.WithName(logger.ToContext(ctx, logger.Logger()), "temperature-monitor")
}

// listen opens address, or returns nil when it is empty.
func listen(ctx context.Context, address string) (net.Listener, error) {
	if address == "" {
		return nil, nil //nolint:nilnil // Empty address disables the server.
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}
