// Package config handles wasminspect.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/inspect"
	"github.com/wippyai/wasm-inspect/wasm"
)

// FileName is the configuration file Find looks for.
const FileName = "wasminspect.toml"

// Config represents a wasminspect.toml file.
type Config struct {
	Reader Reader `toml:"reader"`
	Batch  Batch  `toml:"batch"`
	Log    Log    `toml:"log"`
	Verify Verify `toml:"verify"`

	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `toml:"-"`
}

// Reader configures module validation.
type Reader struct {
	StrictOrder    bool  `toml:"strict-order"`
	LenientExports bool  `toml:"lenient-exports"`
	MaxBytes       int64 `toml:"max-bytes"`
}

// Batch configures concurrent inspection.
type Batch struct {
	Timeout Duration `toml:"timeout"`
	Workers int      `toml:"workers"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Verify configures the wazero cross-check.
type Verify struct {
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	opts := inspect.DefaultOptions()
	return &Config{
		Batch: Batch{
			Workers: opts.Workers,
			Timeout: Duration{opts.Timeout},
		},
		Log: Log{Level: "warn"},
	}
}

// Load parses the file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("cannot read %s", path).
			Cause(err).
			Build()
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("parse error in %s", path).
			Cause(err).
			Build()
	}
	c.Path = path

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Find walks up from startDir looking for FileName. It returns an empty
// path, and no error, when there is none.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail(format, args...).
			Build()
	}
	if c.Batch.Workers < 0 {
		return invalid("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	if c.Batch.Timeout.Duration < 0 {
		return invalid("batch.timeout must not be negative, got %s", c.Batch.Timeout)
	}
	if c.Reader.MaxBytes < 0 {
		return invalid("reader.max-bytes must not be negative, got %d", c.Reader.MaxBytes)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	return nil
}

// ReaderOptions converts the reader section into validation options.
func (c *Config) ReaderOptions() wasm.Options {
	return wasm.Options{
		StrictSectionOrder: c.Reader.StrictOrder,
		LenientExports:     c.Reader.LenientExports,
	}
}

// InspectOptions converts the configuration into inspection options.
func (c *Config) InspectOptions() inspect.Options {
	return inspect.Options{
		Reader:   c.ReaderOptions(),
		Workers:  c.Batch.Workers,
		Timeout:  c.Batch.Timeout.Duration,
		MaxBytes: c.Reader.MaxBytes,
		Verify:   c.Verify.Enabled,
	}
}

// NewLogger builds a zap logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
