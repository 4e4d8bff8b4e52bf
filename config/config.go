package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Prefix is the environment variable prefix.
const Prefix = "TRACEKIT"

// Config holds all agent configuration.
type Config struct {
	APIKey       string `split_words:"true"`
	ServiceName  string `split_words:"true" default:"app"`
	JobNamespace string `split_words:"true"`
	IngestURL    string `split_words:"true" default:"http://localhost:8080/v1/spans"`
	Enabled      bool   `default:"true"`
	Debug        bool   `default:"false"`

	Ignore IgnoreConfig

	BatchSize     int           `split_words:"true" default:"100"`
	FlushInterval time.Duration `split_words:"true" default:"2s"`
	BufferSize    int           `split_words:"true" default:"1000"`

	Timeout         time.Duration `default:"5s"`
	Compress        bool          `default:"false"`
	CheckRevocation bool          `split_words:"true" default:"true"`
	CircuitBreaker  bool          `split_words:"true" default:"false"`

	Log LogConfig
}

// IgnoreConfig holds the request filtering rules used by the HTTP adapters.
type IgnoreConfig struct {
	Paths      []string `default:"/health,/metrics"`
	Prefixes   []string
	Extensions []string
}

// LogConfig holds the agent's own logging configuration.
type LogConfig struct {
	Level       string `default:"info"`
	Development bool   `default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment and then applies a YAML or TOML file on
// top of it. The format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := file.apply(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		ServiceName: "app",
		IngestURL:   "http://localhost:8080/v1/spans",
		Enabled:     true,
		Ignore: IgnoreConfig{
			Paths: []string{"/health", "/metrics"},
		},
		BatchSize:       100,
		FlushInterval:   2 * time.Second,
		BufferSize:      1000,
		Timeout:         5 * time.Second,
		CheckRevocation: true,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Valid reports whether the configuration carries an API key.
func (c *Config) Valid() bool {
	return c != nil && c.APIKey != ""
}

// Namespace returns the namespace for spans created by job consumers.
func (c *Config) Namespace(job bool) string {
	if job && c.JobNamespace != "" {
		return c.JobNamespace
	}
	return c.ServiceName
}

// Normalize clamps knobs that would otherwise stall or disable batching.
// Load and LoadFile apply it; configs built in code get it from the
// consumers that take them.
func (c *Config) Normalize() {
	def := Default()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	c.Ignore.Paths = trimAll(c.Ignore.Paths)
	c.Ignore.Prefixes = trimAll(c.Ignore.Prefixes)
	c.Ignore.Extensions = trimAll(c.Ignore.Extensions)
}

// Normalized returns a normalized copy of c; c itself is not modified.
func (c *Config) Normalized() *Config {
	out := *c
	out.Normalize()
	return &out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
