// Package config loads merge-engine configuration from a YAML file,
// environment variables, and built-in defaults, in that order of
// precedence (environment wins).
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds every configuration section the merge engine and its
// collaborators need.
type Config struct {
	Merge     MergeConfig     `mapstructure:"merge"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// MergeConfig holds the core merge engine's tunables.
type MergeConfig struct {
	DataDir           string `mapstructure:"data_dir"`
	OutputPath        string `mapstructure:"output_path"`
	Workers           int    `mapstructure:"workers"`
	MemoryBudgetBytes int64  `mapstructure:"memory_budget_bytes"`
}

// StorageConfig holds object storage configuration, used to stage the
// merged granule to its destination URI once the merge completes.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local or cos
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// RegistryConfig holds the merge-run audit ledger's database configuration.
type RegistryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres, or mysql
	DSN      string `mapstructure:"dsn"`  // sqlite file path, or ignored for postgres/mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration. Mirrored here
// so it can be set from the same config file as everything else; the
// telemetry package itself still reads the standard OTEL_* environment
// variables directly, per OpenTelemetry convention.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"` // grpc or http/protobuf
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty means stdout
	Format     string `mapstructure:"format"`      // text (only format currently supported)
}

// Load reads configuration from configPath, falling back to standard
// search locations and then defaults if no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("concise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/concise")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file; defaults and env vars still apply
		} else if os.IsNotExist(err) {
			// explicit path doesn't exist; defaults and env vars still apply
		} else {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CONCISE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from in-memory content, for tests.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("merge.workers", 1)
	v.SetDefault("merge.memory_budget_bytes", 57*1024*1024) // matches SHARED_MEMORY_SIZE's historical default

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./output")

	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.type", "sqlite")
	v.SetDefault("registry.dsn", "./concise.db")
	v.SetDefault("registry.max_conns", 10)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.protocol", "grpc")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks invariants that can't be expressed as defaults.
func (c *Config) Validate() error {
	if c.Merge.Workers < 0 {
		return fmt.Errorf("merge.workers must not be negative")
	}
	if c.Merge.MemoryBudgetBytes < 0 {
		return fmt.Errorf("merge.memory_budget_bytes must not be negative")
	}
	if c.Registry.Enabled {
		switch c.Registry.Type {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("unsupported registry type: %s", c.Registry.Type)
		}
	}
	return nil
}
