// Package config loads healthlens settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/healthlens/source"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEALTHLENS_"

// Config is the full runtime configuration.
type Config struct {
	DatasetURL  string        `yaml:"dataset_url" validate:"required"`
	TaxonomyURL string        `yaml:"taxonomy_url" validate:"required"`
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`
	ListenAddr  string        `yaml:"listen_addr" validate:"required,hostname_port"`
	LogFormat   string        `yaml:"log_format" validate:"oneof=json text"`
	LogLevel    string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	// Preload loads the default session at startup instead of on first request.
	Preload bool `yaml:"preload"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatasetURL:  source.DefaultDatasetURL,
		TaxonomyURL: source.DefaultTaxonomyURL,
		HTTPTimeout: 30 * time.Second,
		ListenAddr:  ":8080",
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// Load reads path (if non-empty) over the defaults, applies HEALTHLENS_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATASET_URL":  &c.DatasetURL,
		"TAXONOMY_URL": &c.TaxonomyURL,
		"LISTEN_ADDR":  &c.ListenAddr,
		"LOG_FORMAT":   &c.LogFormat,
		"LOG_LEVEL":    &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "HTTP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_TIMEOUT: %w", EnvPrefix, err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "PRELOAD"); ok {
		c.Preload = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

// Resources returns the dataset and taxonomy locations.
func (c *Config) Resources() (dataset, taxonomy source.Resource) {
	return source.Resource{Name: "dataset", Location: c.DatasetURL},
		source.Resource{Name: "taxonomy", Location: c.TaxonomyURL}
}

// NewLogger builds an slog logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
