package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/sensor"
)

// Config holds every setting of the monitor.
type Config struct {
	// RetentionDays is how long readings are kept.
	RetentionDays int `yaml:"retention_days"`
	// PollIntervalMinutes is the time between two ticks.
	PollIntervalMinutes int `yaml:"poll_interval_minutes"`
	// HTTPAddress is the listen address of the query API; empty disables it.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is the listen address of the health service; empty disables it.
	GRPCAddress string `yaml:"grpc_addr"`
	// Alert holds the thresholds.
	Alert AlertConfig `yaml:"alert"`
	// Storage selects the reading repository.
	Storage StorageConfig `yaml:"storage"`
	// Sensor selects the temperature source.
	Sensor SensorConfig `yaml:"sensor"`
	// Notify holds transport credentials.
	Notify NotifyConfig `yaml:"notify"`
	// Log configures the logger.
	Log LogConfig `yaml:"log"`
}

// AlertConfig holds the alert thresholds.
type AlertConfig struct {
	// Threshold is the high temperature in °C.
	Threshold float64 `yaml:"threshold"`
	// NormalMargin is how far below Threshold the temperature must fall to clear an alert.
	NormalMargin float64 `yaml:"normal_margin"`
	// CooldownHours is the minimum time between two high alerts.
	CooldownHours int `yaml:"cooldown_hours"`
	// RearmAfterCooldown lets a long-running alert fire again after the cooldown.
	RearmAfterCooldown bool `yaml:"rearm_after_cooldown"`
}

// StorageConfig selects the reading repository.
type StorageConfig struct {
	// Driver is memory or postgres. Empty picks postgres when DSN is set.
	Driver string `yaml:"driver"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn,omitempty"`
}

// SensorConfig selects the temperature source.
type SensorConfig struct {
	// Driver is file or mqtt.
	Driver string `yaml:"driver"`
	// Source is internal or external.
	Source string `yaml:"source"`
	// InternalPath is the sysfs file of the internal probe.
	InternalPath string `yaml:"internal_path"`
	// ExternalPath is the sysfs file of the external probe.
	ExternalPath string `yaml:"external_path"`
	// MQTTBroker is the host:port of the broker.
	MQTTBroker string `yaml:"mqtt_broker,omitempty"`
	// MQTTTopic carries the temperature payloads.
	MQTTTopic string `yaml:"mqtt_topic"`
}

// NotifyConfig holds transport credentials. A transport is enabled when its
// credentials are set.
type NotifyConfig struct {
	PushoverUserKey  string `yaml:"pushover_user_key,omitempty"`
	PushoverAPIToken string `yaml:"pushover_api_token,omitempty"`
	// PushoverEndpoint replaces the public message API, e.g. for a relay.
	PushoverEndpoint string `yaml:"pushover_endpoint,omitempty"`
	TelegramBotToken string `yaml:"telegram_bot_token,omitempty"`
	TelegramChatID   int64  `yaml:"telegram_chat_id,omitempty"`
	// TelegramAPIURL replaces the public Bot API server.
	TelegramAPIURL string `yaml:"telegram_api_url,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// File enables a rotating log file when set.
	File string `yaml:"file,omitempty"`
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Sensor drivers.
const (
	SensorFile = "file"
	SensorMQTT = "mqtt"
)

const (
	// DefaultConfigFilename is the settings file read when no path is given.
	DefaultConfigFilename = "temperature-monitor.yaml"

	// DefaultEnvFilename is the dotenv file read when no path is given.
	DefaultEnvFilename = ".env"

	// DefaultFilePermissions is the file permission for written config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidSetting is wrapped by every validation failure.
	errInvalidSetting = errors.New("invalid setting")
)

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		RetentionDays:       14,
		PollIntervalMinutes: 1,
		HTTPAddress:         ":5000",
		GRPCAddress:         ":50051",
		Alert: AlertConfig{
			Threshold:     23.5,
			NormalMargin:  1.0,
			CooldownHours: 1,
		},
		Sensor: SensorConfig{
			Driver:       SensorFile,
			Source:       string(sensor.SourceExternal),
			InternalPath: sensor.DefaultInternalPath,
			ExternalPath: sensor.DefaultExternalPath,
			MQTTTopic:    sensor.DefaultMQTTTopic,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, the
// dotenv file at envFile and the process environment, later sources winning.
// Empty paths select the default files, which may be absent.
func Load(path, envFile string) (*Config, error) {
	return load(path, envFile, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}

	dotenv, err := readDotenv(envFile)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}

		v, ok := dotenv[key]

		return v, ok
	})

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	optional := path == ""
	if optional {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	return nil
}

func readDotenv(path string) (map[string]string, error) {
	optional := path == ""
	if optional {
		path = DefaultEnvFilename
	}

	values, err := godotenv.Read(filepath.Clean(path))
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("read env file: %w", err)
	}

	return values, nil
}

// applyEnv overrides cfg with environment values. Numbers that do not parse
// keep the current value.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	envInt(lookup, "DATA_RETENTION_DAYS", &cfg.RetentionDays)
	envInt(lookup, "POLL_INTERVAL_MINUTES", &cfg.PollIntervalMinutes)
	envFloat(lookup, "TEMPERATURE_THRESHOLD", &cfg.Alert.Threshold)
	envFloat(lookup, "TEMPERATURE_NORMAL_MARGIN", &cfg.Alert.NormalMargin)
	envInt(lookup, "NOTIFICATION_COOLDOWN_HOURS", &cfg.Alert.CooldownHours)
	envBool(lookup, "ALERT_REARM_AFTER_COOLDOWN", &cfg.Alert.RearmAfterCooldown)

	envString(lookup, "STORAGE_DRIVER", &cfg.Storage.Driver)
	envString(lookup, "DB_DSN", &cfg.Storage.DSN)

	envString(lookup, "SENSOR_DRIVER", &cfg.Sensor.Driver)
	envString(lookup, "TEMPERATURE_SOURCE", &cfg.Sensor.Source)
	envString(lookup, "SENSOR_INTERNAL_PATH", &cfg.Sensor.InternalPath)
	envString(lookup, "SENSOR_EXTERNAL_PATH", &cfg.Sensor.ExternalPath)
	envString(lookup, "MQTT_BROKER", &cfg.Sensor.MQTTBroker)
	envString(lookup, "MQTT_TOPIC", &cfg.Sensor.MQTTTopic)

	envString(lookup, "PUSHOVER_USER_KEY", &cfg.Notify.PushoverUserKey)
	envString(lookup, "PUSHOVER_API_TOKEN", &cfg.Notify.PushoverAPIToken)
	envString(lookup, "PUSHOVER_ENDPOINT", &cfg.Notify.PushoverEndpoint)
	envString(lookup, "TELEGRAM_BOT_TOKEN", &cfg.Notify.TelegramBotToken)
	envInt64(lookup, "TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	envString(lookup, "TELEGRAM_API_URL", &cfg.Notify.TelegramAPIURL)

	envString(lookup, "HTTP_ADDR", &cfg.HTTPAddress)
	envString(lookup, "GRPC_ADDR", &cfg.GRPCAddress)
	envString(lookup, "LOG_LEVEL", &cfg.Log.Level)
	envString(lookup, "LOG_FILE", &cfg.Log.File)
}

func envString(lookup func(string) (string, bool), key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(lookup func(string) (string, bool), key string, dst *int) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envInt64(lookup func(string) (string, bool), key string, dst *int64) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(lookup func(string) (string, bool), key string, dst *float64) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envBool(lookup func(string) (string, bool), key string, dst *bool) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Credentials may be inside, so restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings for consistency.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention_days must be positive, got %d", errInvalidSetting, cfg.RetentionDays)
	}

	if cfg.PollIntervalMinutes <= 0 {
		return fmt.Errorf("%w: poll_interval_minutes must be positive, got %d", errInvalidSetting, cfg.PollIntervalMinutes)
	}

	if err := cfg.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %w", errInvalidSetting, err)
	}

	if err := validateAddress("http_addr", cfg.HTTPAddress); err != nil {
		return err
	}

	if err := validateAddress("grpc_addr", cfg.GRPCAddress); err != nil {
		return err
	}

	switch cfg.StorageDriver() {
	case StorageMemory:
	case StoragePostgres:
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("%w: postgres storage requires a dsn", errInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", errInvalidSetting, cfg.Storage.Driver)
	}

	if _, err := sensor.ParseSource(cfg.Sensor.Source); err != nil {
		return fmt.Errorf("%w: %w", errInvalidSetting, err)
	}

	switch cfg.Sensor.Driver {
	case SensorFile:
	case SensorMQTT:
		if cfg.Sensor.MQTTBroker == "" {
			return fmt.Errorf("%w: mqtt sensor requires a broker", errInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown sensor driver %q", errInvalidSetting, cfg.Sensor.Driver)
	}

	if _, ok := logger.ParseLogLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: unknown log level %q", errInvalidSetting, cfg.Log.Level)
	}

	return nil
}

func validateAddress(name, address string) error {
	if address == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("%w: %s: %w", errInvalidSetting, name, err)
	}

	return nil
}

// StorageDriver resolves an empty driver from the presence of a DSN.
func (c *Config) StorageDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if driver != "" {
		return driver
	}

	if c.Storage.DSN != "" {
		return StoragePostgres
	}

	return StorageMemory
}

// RetentionPeriod returns the retention as a duration.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// Thresholds returns the alert thresholds.
func (c *Config) Thresholds() alert.Thresholds {
	return alert.Thresholds{
		High:         c.Alert.Threshold,
		NormalMargin: c.Alert.NormalMargin,
		Cooldown:     time.Duration(c.Alert.CooldownHours) * time.Hour,
	}
}

// SensorSource returns the parsed probe selection. It assumes Validate passed.
func (c *Config) SensorSource() sensor.Source {
	source, err := sensor.ParseSource(c.Sensor.Source)
	if err != nil {
		return sensor.SourceExternal
	}

	return source
}
