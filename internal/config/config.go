// Package config loads service settings from an optional YAML file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PartialPolicy decides what a batch produces when some pages could not be rectified.
type PartialPolicy string

const (
	// PartialPlaceholder answers with the placeholder image instead of a PDF.
	PartialPlaceholder PartialPolicy = "placeholder"
	// PartialMixed assembles every page, rectified or not.
	PartialMixed PartialPolicy = "mixed"
)

// Config is the complete service configuration.
type Config struct {
	Addr   string       `yaml:"addr"`
	Log    LogConfig    `yaml:"log"`
	Ingest IngestConfig `yaml:"ingest"`
	Output OutputConfig `yaml:"output"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// IngestConfig describes how a batch directory is consumed.
type IngestConfig struct {
	ReadyMarker  string        `yaml:"ready_marker"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	Patterns     []string      `yaml:"patterns"`
	Cleanup      bool          `yaml:"cleanup"`
}

// OutputConfig describes the produced document.
type OutputConfig struct {
	PDFName     string        `yaml:"pdf_name"`
	PageSize    string        `yaml:"page_size"`
	Placeholder string        `yaml:"placeholder"`
	Partial     PartialPolicy `yaml:"partial"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr: ":8000",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ingest: IngestConfig{
			ReadyMarker:  "READY.txt",
			ReadyTimeout: 10 * time.Second,
			Patterns:     []string{"img_*.jpg", "img_*.png"},
			Cleanup:      true,
		},
		Output: OutputConfig{
			PDFName:     "output.pdf",
			PageSize:    "A4",
			Placeholder: "assets/demo.png",
			Partial:     PartialPlaceholder,
		},
	}
}

// LoadDotEnv loads variables from the named .env files into the environment
// without overriding ones already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if path is
// not empty) and FLAME_* environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("FLAME_ADDR", &c.Addr)
	str("FLAME_LOG_LEVEL", &c.Log.Level)
	str("FLAME_LOG_FORMAT", &c.Log.Format)
	str("FLAME_READY_MARKER", &c.Ingest.ReadyMarker)
	str("FLAME_OUTPUT_NAME", &c.Output.PDFName)
	str("FLAME_PAGE_SIZE", &c.Output.PageSize)
	str("FLAME_PLACEHOLDER", &c.Output.Placeholder)

	if v, ok := lookup("FLAME_PARTIAL_POLICY"); ok && v != "" {
		c.Output.Partial = PartialPolicy(strings.ToLower(v))
	}
	if v, ok := lookup("FLAME_IMAGE_PATTERNS"); ok && v != "" {
		c.Ingest.Patterns = splitList(v)
	}
	if v, ok := lookup("FLAME_READY_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FLAME_READY_TIMEOUT: %w", err)
		}
		c.Ingest.ReadyTimeout = d
	}
	if v, ok := lookup("FLAME_CLEANUP"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FLAME_CLEANUP: %w", err)
		}
		c.Ingest.Cleanup = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
