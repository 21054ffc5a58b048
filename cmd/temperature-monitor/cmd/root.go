package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/temperature-monitor/internal/config"
	"github.com/oshokin/temperature-monitor/internal/service/monitor"
	"github.com/oshokin/temperature-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// envFile path to the dotenv file.
	envFile string
	// logLevel overrides the configured log level.
	logLevel string
	// force allows init-config to overwrite an existing file.
	force bool

	// errConfigExists is returned by init-config when the target exists.
	errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

	// rootCmd represents the base command for running the monitor.
	rootCmd = &cobra.Command{
		Use:   "temperature-monitor",
		Short: "Poll a temperature sensor, keep its history and alert on thresholds.",
		Long: `Polls the temperature sensor every poll interval, stores readings for the
retention period and sends a notification when the temperature rises above the
threshold or falls back below threshold minus the normal margin.

Settings come from the YAML file, then the dotenv file, then the environment.
Stored readings are served over HTTP and poll health over gRPC.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return monitor.Run(ctx, options())
		},
	}

	// tickCmd runs one poll cycle.
	tickCmd = &cobra.Command{
		Use:   "tick",
		Short: "Run a single poll cycle and exit.",
		Long: `Reads the sensor once, stores the reading and evaluates it. Alert state is not
kept between invocations, so a reading above the threshold always notifies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			result, err := monitor.RunOnce(ctx, options())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "status=%s alert=%s delivered=%t\n",
				result.Status, result.Alert, result.Delivered)

			if result.Err != nil {
				return result.Err
			}

			return nil
		},
	}

	// initConfigCmd writes the default settings.
	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with default settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s: %w", path, errConfigExists)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", path, err)
				}
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

			return nil
		},
	}
)

// options collects the flag values for the monitor service.
func options() *monitor.Options {
	return &monitor.Options{
		ConfigPath: configPath,
		EnvFile:    envFile,
		LogLevel:   logLevel,
	}
}

// Execute runs the temperature-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default \""+config.DefaultConfigFilename+"\")")
	rootCmd.PersistentFlags().
		StringVarP(&envFile, "env-file", "e", "", "path to dotenv file (default \""+config.DefaultEnvFilename+"\")")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")

	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	rootCmd.AddCommand(tickCmd, initConfigCmd)
}
