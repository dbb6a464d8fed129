package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
)

// Defaults for a missing config file.
const (
	DefaultBudgetTokens   = 8000
	DefaultMinConfidence  = 1.0
	DefaultRelativeMargin = 0.8
	DefaultMaxMatches     = 3
	DefaultRescanTimeout  = 30 * time.Second
	DefaultLogLevel       = "warn"
)

// Environment keys, read from the process environment first and from
// ~/.skillctx/.env second.
const (
	EnvCorpusRoot     = "CORPUS_ROOT"
	EnvBudgetTokens   = "DEFAULT_BUDGET_TOKENS"
	EnvMinConfidence  = "MIN_CONFIDENCE"
	EnvRelativeMargin = "RELATIVE_MARGIN"
	EnvLogLevel       = "SKILLCTX_LOG_LEVEL"
	EnvWorkers        = "SKILLCTX_WORKERS"
)

// Config is the in-memory representation of ~/.skillctx/skillctx.yaml.
type Config struct {
	CorpusRoot          string        `yaml:"corpus_root"`
	DefaultBudgetTokens int           `yaml:"default_budget_tokens"`
	MinConfidence       float64       `yaml:"min_confidence"`
	RelativeMargin      float64       `yaml:"relative_margin"`
	MaxMatches          int           `yaml:"max_matches"`
	Workers             int           `yaml:"workers"`
	RescanTimeout       time.Duration `yaml:"rescan_timeout"`
	CacheDir            string        `yaml:"cache_dir,omitempty"`
	LogLevel            string        `yaml:"log_level"`
	Patterns            []string      `yaml:"patterns,omitempty"`
}

// Dir returns the absolute path to ~/.skillctx/.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".skillctx"), nil
}

// ConfigPath returns the absolute path to ~/.skillctx/skillctx.yaml.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skillctx.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return &Config{
		CorpusRoot:          ".",
		DefaultBudgetTokens: DefaultBudgetTokens,
		MinConfidence:       DefaultMinConfidence,
		RelativeMargin:      DefaultRelativeMargin,
		MaxMatches:          DefaultMaxMatches,
		Workers:             runtime.GOMAXPROCS(0),
		RescanTimeout:       DefaultRescanTimeout,
		CacheDir:            filepath.Join(dir, "cache"),
		LogLevel:            DefaultLogLevel,
		Patterns:            append([]string(nil), manifest.DefaultPatterns...),
	}, nil
}

// Load reads ~/.skillctx/skillctx.yaml over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.CorpusRoot, err = ExpandPath(cfg.CorpusRoot); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = ExpandPath(cfg.CacheDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save marshals cfg and writes it to ~/.skillctx/skillctx.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.CorpusRoot == "" {
		errs = append(errs, errors.New("corpus_root is empty"))
	}
	if c.DefaultBudgetTokens < 0 {
		errs = append(errs, fmt.Errorf("default_budget_tokens must not be negative, got %d", c.DefaultBudgetTokens))
	}
	if c.MinConfidence < 0 {
		errs = append(errs, fmt.Errorf("min_confidence must not be negative, got %g", c.MinConfidence))
	}
	if c.RelativeMargin <= 0 || c.RelativeMargin > 1 {
		errs = append(errs, fmt.Errorf("relative_margin must be in (0, 1], got %g", c.RelativeMargin))
	}
	if c.MaxMatches < 1 {
		errs = append(errs, fmt.Errorf("max_matches must be at least 1, got %d", c.MaxMatches))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.RescanTimeout < 0 {
		errs = append(errs, fmt.Errorf("rescan_timeout must not be negative, got %s", c.RescanTimeout))
	}
	return errors.Join(errs...)
}
