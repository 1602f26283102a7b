// Package config loads h5slab settings from JSONC files layered over
// built-in defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-malhotra/h5slab/internal/source"
	"github.com/robert-malhotra/h5slab/slab"
	"github.com/tailscale/hujson"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".h5slab.json"

var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid config")
)

// Config holds every setting the CLI reads from files and flags.
type Config struct {
	LogLevel       string             `json:"log_level"`
	Fallback       string             `json:"fallback"`
	CacheBytes     int64              `json:"cache_bytes"`
	BlockSize      int64              `json:"block_size"`
	RateLimitBytes int64              `json:"rate_limit_bytes"`
	Mmap           bool               `json:"mmap"`
	S3             source.S3Config    `json:"s3"`
	Minio          source.MinioConfig `json:"minio"`
}

// Sources records which config files were loaded.
type Sources struct {
	Global  string // empty when absent
	Project string // empty when absent
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:   "warn",
		Fallback:   slab.FallbackRebind.String(),
		CacheBytes: 64 << 20,
		BlockSize:  source.DefaultBlockSize,
	}
}

// GlobalPath returns $XDG_CONFIG_HOME/h5slab/config.json, falling back to
// ~/.config/h5slab/config.json. It is empty if neither can be determined.
func GlobalPath(env map[string]string) string {
	if dir := env["XDG_CONFIG_HOME"]; dir != "" {
		return filepath.Join(dir, "h5slab", "config.json")
	}
	home := env["HOME"]
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, ".config", "h5slab", "config.json")
}

// Load layers, lowest first: defaults, the global config, then either the
// explicit file configPath or the project file in workDir. Relative
// configPath values are resolved against workDir. The result is not
// validated so flag overrides can be applied first.
func Load(workDir, configPath string, env map[string]string) (Config, Sources, error) {
	cfg := Default()
	var src Sources

	if p := GlobalPath(env); p != "" {
		ok, err := mergeFile(&cfg, p, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if ok {
			src.Global = p
		}
	}

	project, mustExist := filepath.Join(workDir, FileName), false
	if configPath != "" {
		project, mustExist = configPath, true
		if !filepath.IsAbs(project) {
			project = filepath.Join(workDir, project)
		}
	}
	ok, err := mergeFile(&cfg, project, mustExist)
	if err != nil {
		return Config{}, Sources{}, err
	}
	if ok {
		src.Project = project
	}
	return cfg, src, nil
}

// mergeFile decodes the file at path over cfg. Keys absent from the file
// keep their current values.
func mergeFile(cfg *Config, path string, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mustExist {
				return false, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return false, nil
		}
		return false, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := Merge(cfg, data); err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return true, nil
}

// Merge decodes JSONC data over cfg. Unknown keys are rejected.
func Merge(cfg *Config, data []byte) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	next := *cfg
	if err := dec.Decode(&next); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	*cfg = next
	return nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, ok := slab.ParseFallback(c.Fallback); !ok {
		errs = append(errs, fmt.Errorf("fallback must be rebind or copy, got %q", c.Fallback))
	}
	if c.CacheBytes < 0 {
		errs = append(errs, fmt.Errorf("cache_bytes must not be negative, got %d", c.CacheBytes))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("block_size must be positive, got %d", c.BlockSize))
	}
	if c.RateLimitBytes < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_bytes must not be negative, got %d", c.RateLimitBytes))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Level returns the configured log level, or warn if it does not parse.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

// FallbackPolicy returns the configured slab fallback.
func (c Config) FallbackPolicy() slab.Fallback {
	f, _ := slab.ParseFallback(c.Fallback)
	return f
}

// SourceOptions converts the source settings into source.Open options.
func (c Config) SourceOptions() []source.Option {
	return []source.Option{
		source.WithMmap(c.Mmap),
		source.WithCache(c.CacheBytes, c.BlockSize),
		source.WithRateLimit(c.RateLimitBytes),
		source.WithS3(c.S3),
		source.WithMinio(c.Minio),
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		if err := l.UnmarshalText([]byte(s)); err != nil {
			return 0, err
		}
		return l, nil
	}
	return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
}

// Format renders cfg as indented JSON. Secret keys are masked.
func Format(cfg Config) (string, error) {
	if cfg.Minio.SecretKey != "" {
		cfg.Minio.SecretKey = "********"
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}
	return string(data), nil
}
