// Package config loads service configuration from defaults, an optional
// YAML file and STOCKBACKUP_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/blueprint"
)

// EnvPrefix is prepended to every environment override, e.g.
// STOCKBACKUP_SERVER_PORT for server.port.
const EnvPrefix = "STOCKBACKUP"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Queue     QueueConfig     `mapstructure:"queue"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds the SQLite data source.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// WorkflowConfig selects the workflow graph provisioned for tenants.
type WorkflowConfig struct {
	// Key overrides the definition key declared by the blueprint.
	Key                string `mapstructure:"key"`
	Blueprint          string `mapstructure:"blueprint"`
	EnforcePermissions bool   `mapstructure:"enforce_permissions"`
	LazyProvisioning   bool   `mapstructure:"lazy_provisioning"` // provision a tenant on first workflow use
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	Exporter       string        `mapstructure:"exporter"`
	Insecure       bool          `mapstructure:"insecure"` // OTLP over plain HTTP
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueueConfig holds River settings.
type QueueConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxWorkers int  `mapstructure:"max_workers"`
}

// Load reads configuration. An empty path skips the file and uses defaults
// plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "stockbackup.db")

	v.SetDefault("workflow.key", "")
	v.SetDefault("workflow.blueprint", blueprint.Default)
	v.SetDefault("workflow.enforce_permissions", false)
	v.SetDefault("workflow.lazy_provisioning", true)

	v.SetDefault("telemetry.service_name", "stockbackup")
	v.SetDefault("telemetry.service_version", "0.1.0")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metric_interval", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.max_workers", 2)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if !contains(blueprint.Names(), c.Workflow.Blueprint) {
		errs = append(errs, fmt.Errorf("workflow.blueprint %q unknown (available: %s)",
			c.Workflow.Blueprint, strings.Join(blueprint.Names(), ", ")))
	}
	if !contains([]string{"stdout", "otlp", "none"}, c.Telemetry.Exporter) {
		errs = append(errs, fmt.Errorf("telemetry.exporter %q must be stdout, otlp or none", c.Telemetry.Exporter))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v must be between 0 and 1", c.Telemetry.SampleRatio))
	}
	if !contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if !contains([]string{"json", "console"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	if c.Queue.Enabled && c.Queue.MaxWorkers <= 0 {
		errs = append(errs, errors.New("queue.max_workers must be positive when the queue is enabled"))
	}

	return errors.Join(errs...)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
