package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/VCasecnikovs/duorec/internal/echo"
	"github.com/VCasecnikovs/duorec/internal/metrics"
	"github.com/VCasecnikovs/duorec/internal/segment"
)

// Config represents the complete recorder configuration.
type Config struct {
	Audio         AudioConfig          `yaml:"audio"`
	Capture       CaptureConfig        `yaml:"capture"`
	Echo          echo.Params          `yaml:"echo"`
	Segmenter     segment.Params       `yaml:"segmenter"`
	Transcription TranscriptionConfig  `yaml:"transcription"`
	Metrics       metrics.ServerConfig `yaml:"metrics"`
	Logging       LoggingConfig        `yaml:"logging"`
}

// AudioConfig contains the canonical stream format and output location.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	OutputDir  string `yaml:"output_dir"`
}

// CaptureConfig pins capture devices. Empty values select the default
// input and probe for the best system-output tap.
type CaptureConfig struct {
	MicDevice    string `yaml:"mic_device"`
	SystemDevice string `yaml:"system_device"`
}

// TranscriptionConfig contains recognizer endpoint configuration.
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			OutputDir:  "recordings",
		},
		Echo:      echo.DefaultParams(),
		Segmenter: segment.DefaultParams(),
		Transcription: TranscriptionConfig{
			Timeout:       120,
			MaxRetries:    3,
			MaxConcurrent: 2,
		},
		Metrics: metrics.ServerConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Values not present in the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate performs validation of the whole configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Echo.Validate(); err != nil {
		return fmt.Errorf("echo config: %w", err)
	}
	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics config: port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics config: address cannot be empty when metrics are enabled")
		}
	}
	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}
	if a.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	return nil
}

// Validate validates transcription configuration. An empty endpoint is
// allowed: recording works without a recognizer, transcription does not.
func (t *TranscriptionConfig) Validate() error {
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}
	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration.
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
