package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxiofs/miniogate/internal/resolver"
)

// Config holds all configuration for the miniogate gateway
type Config struct {
	// Server configuration
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`

	// Upstream MinIO endpoint
	Upstream UpstreamConfig `mapstructure:"upstream"`

	// Signing credentials
	Minio MinioConfig `mapstructure:"minio"`

	// Path resolution
	BucketName       string        `mapstructure:"bucket_name"`
	StripPathPattern string        `mapstructure:"strip_path_pattern"`
	Routes           []RouteConfig `mapstructure:"routes"`

	// Upstream timeout in milliseconds
	Timeout int `mapstructure:"timeout"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// UpstreamConfig identifies the storage endpoint
type UpstreamConfig struct {
	Protocol string `mapstructure:"protocol"` // http or https
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Path     string `mapstructure:"path"` // service path prefix
}

// MinioConfig holds the credential pair and region used for signing
type MinioConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
}

// RouteConfig describes one route: matched path prefixes and whether the
// matched prefix is stripped before the request is resolved upstream
type RouteConfig struct {
	Paths     []string `mapstructure:"paths"`
	StripPath bool     `mapstructure:"strip_path"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// RegisterFlags adds the gateway's command line flags. Shared by main and
// the config tests. Registered on the command's own flag set: the root
// command has no subcommands, and persistent flags only surface through
// Flags() once cobra parses them.
func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().StringP("listen", "l", ":8080", "Listen address")
	cmd.Flags().StringP("log-level", "", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringP("upstream-host", "", "localhost", "Upstream MinIO host")
	cmd.Flags().IntP("upstream-port", "", 9000, "Upstream MinIO port")
	cmd.Flags().StringP("access-key", "", "", "MinIO access key")
	cmd.Flags().StringP("secret-key", "", "", "MinIO secret key")
	cmd.Flags().StringP("bucket-name", "", "", "Bucket injected into upstream paths")
}

// Load loads configuration from flags, config file and environment
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("MINIOGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate and setup defaults
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")

	// Upstream defaults - standard MinIO port
	v.SetDefault("upstream.protocol", "http")
	v.SetDefault("upstream.host", "localhost")
	v.SetDefault("upstream.port", 9000)
	v.SetDefault("upstream.path", "")

	// Signing defaults - NO default credentials
	// access_key and secret_key must be explicitly configured
	v.SetDefault("minio.region", "us-east-1")

	v.SetDefault("bucket_name", "")
	v.SetDefault("strip_path_pattern", "")
	v.SetDefault("timeout", 30000)

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":        "listen",
		"log-level":     "log_level",
		"upstream-host": "upstream.host",
		"upstream-port": "upstream.port",
		"access-key":    "minio.access_key",
		"secret-key":    "minio.secret_key",
		"bucket-name":   "bucket_name",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	// Missing credentials must prevent any signing attempt
	if cfg.Minio.AccessKey == "" {
		return fmt.Errorf("minio.access_key is required: specify via --access-key flag, config file, or MINIOGATE_MINIO_ACCESS_KEY environment variable")
	}
	if cfg.Minio.SecretKey == "" {
		return fmt.Errorf("minio.secret_key is required: specify via --secret-key flag, config file, or MINIOGATE_MINIO_SECRET_KEY environment variable")
	}

	switch cfg.Upstream.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("upstream.protocol must be http or https, got %q", cfg.Upstream.Protocol)
	}
	if cfg.Upstream.Host == "" {
		return fmt.Errorf("upstream.host is required")
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive number of milliseconds, got %d", cfg.Timeout)
	}

	// A broken pattern must fail startup, not individual requests
	if _, err := resolver.CompileStripPattern(cfg.StripPathPattern); err != nil {
		return err
	}

	return nil
}
