package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override
const EnvPrefix = "GEOFRAMES_"

// Config holds all application configuration
type Config struct {
	// External programs
	Tools ToolsConfig `yaml:"tools"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Frame output settings
	Output OutputConfig `yaml:"output"`

	Metrics MetricsConfig `yaml:"metrics"`
}

type ToolsConfig struct {
	FFmpeg   string `yaml:"ffmpeg" env:"FFMPEG"`
	FFprobe  string `yaml:"ffprobe" env:"FFPROBE"`
	Exiftool string `yaml:"exiftool" env:"EXIFTOOL"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads" env:"FFMPEG_THREADS"`
}

type OutputConfig struct {
	JPEGQuality int `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	Workers     int `yaml:"workers" env:"WORKERS"`
	// Software overrides the Software tag; empty means the program version
	Software string `yaml:"software" env:"SOFTWARE"`
}

type MetricsConfig struct {
	// Textfile is a node-exporter textfile collector path; empty disables export
	Textfile string `yaml:"textfile" env:"METRICS_TEXTFILE"`
}

// Load reads configuration from file or returns defaults. Environment
// variables prefixed with GEOFRAMES_ override file values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values
func (c *Config) Validate() error {
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100, got %d", c.Output.JPEGQuality)
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("output.workers must be at least 1, got %d", c.Output.Workers)
	}
	if c.FFmpeg.Threads < 0 {
		return fmt.Errorf("ffmpeg.threads must not be negative, got %d", c.FFmpeg.Threads)
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return renameio.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			FFmpeg:   "ffmpeg",
			FFprobe:  "ffprobe",
			Exiftool: "exiftool",
		},
		FFmpeg: FFmpegConfig{
			Threads: 0,
		},
		Output: OutputConfig{
			JPEGQuality: 88,
			Workers:     1,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./geoframes.yaml",
		"./geoframes.yml",
		filepath.Join(os.Getenv("HOME"), ".geoframes", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
