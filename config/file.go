package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedFormat is returned by LoadFile for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// fileConfig mirrors Config for YAML/TOML files. Pointer fields distinguish
// "absent" from a zero value so a file only overrides what it names.
type fileConfig struct {
	APIKey       *string `yaml:"api_key" toml:"api_key"`
	ServiceName  *string `yaml:"service_name" toml:"service_name"`
	JobNamespace *string `yaml:"job_namespace" toml:"job_namespace"`
	IngestURL    *string `yaml:"ingest_url" toml:"ingest_url"`
	Enabled      *bool   `yaml:"enabled" toml:"enabled"`
	Debug        *bool   `yaml:"debug" toml:"debug"`

	IgnorePaths      []string `yaml:"ignore_paths" toml:"ignore_paths"`
	IgnorePrefixes   []string `yaml:"ignore_prefixes" toml:"ignore_prefixes"`
	IgnoreExtensions []string `yaml:"ignore_extensions" toml:"ignore_extensions"`

	BatchSize     *int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval *string `yaml:"flush_interval" toml:"flush_interval"`
	BufferSize    *int    `yaml:"buffer_size" toml:"buffer_size"`

	Timeout         *string `yaml:"timeout" toml:"timeout"`
	Compress        *bool   `yaml:"compress" toml:"compress"`
	CheckRevocation *bool   `yaml:"check_revocation" toml:"check_revocation"`
	CircuitBreaker  *bool   `yaml:"circuit_breaker" toml:"circuit_breaker"`

	LogLevel       *string `yaml:"log_level" toml:"log_level"`
	LogDevelopment *bool   `yaml:"log_development" toml:"log_development"`
}

func (f *fileConfig) apply(cfg *Config) error {
	setString(&cfg.APIKey, f.APIKey)
	setString(&cfg.ServiceName, f.ServiceName)
	setString(&cfg.JobNamespace, f.JobNamespace)
	setString(&cfg.IngestURL, f.IngestURL)
	setString(&cfg.Log.Level, f.LogLevel)
	setBool(&cfg.Enabled, f.Enabled)
	setBool(&cfg.Debug, f.Debug)
	setBool(&cfg.Compress, f.Compress)
	setBool(&cfg.CheckRevocation, f.CheckRevocation)
	setBool(&cfg.CircuitBreaker, f.CircuitBreaker)
	setBool(&cfg.Log.Development, f.LogDevelopment)
	setInt(&cfg.BatchSize, f.BatchSize)
	setInt(&cfg.BufferSize, f.BufferSize)

	if f.IgnorePaths != nil {
		cfg.Ignore.Paths = f.IgnorePaths
	}
	if f.IgnorePrefixes != nil {
		cfg.Ignore.Prefixes = f.IgnorePrefixes
	}
	if f.IgnoreExtensions != nil {
		cfg.Ignore.Extensions = f.IgnoreExtensions
	}

	if err := setDuration(&cfg.FlushInterval, f.FlushInterval, "flush_interval"); err != nil {
		return err
	}
	return setDuration(&cfg.Timeout, f.Timeout, "timeout")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = d
	return nil
}
