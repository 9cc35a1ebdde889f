// Package config holds the compiler settings read from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the picogen configuration.
type Config struct {
	// ModelName names the generated network. Empty means the graph name.
	ModelName string `yaml:"model_name"`
	// OutputDir receives the generated files.
	OutputDir string `yaml:"output_dir"`
	// TemplateDir shadows the embedded templates when set.
	TemplateDir string `yaml:"template_dir"`
	LogLevel    string `yaml:"log_level"`
	// Parallelism bounds concurrent fragment rendering; 0 means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
	// Alignment of buffers in the static memory plan, a power of two.
	Alignment       int64 `yaml:"alignment"`
	PrintTable      bool  `yaml:"print_table"`
	PrintLiveRanges bool  `yaml:"print_live_ranges"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir: "generated_code",
		LogLevel:  "info",
		Alignment: 4,
	}
}

// Load reads path on top of Default.
//
//nolint:gosec // G304: the config path is user input.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism %d is negative", ErrInvalid, c.Parallelism)
	}
	if c.Alignment <= 0 || c.Alignment&(c.Alignment-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalid, c.Alignment)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is empty", ErrInvalid)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
