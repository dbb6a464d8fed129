package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envKeys lists every environment override in template order.
var envKeys = []string{
	EnvCorpusRoot,
	EnvBudgetTokens,
	EnvMinConfidence,
	EnvRelativeMargin,
	EnvLogLevel,
	EnvWorkers,
}

// EnvKeys returns the names of the environment overrides.
func EnvKeys() []string {
	return append([]string(nil), envKeys...)
}

// applyEnv overrides file values with non-empty environment values, the
// process environment taking precedence over the dotenv file.
func (c *Config) applyEnv() error {
	dotenv, err := LoadDotEnv()
	if err != nil {
		return err
	}
	for _, key := range envKeys {
		v := os.Getenv(key)
		if v == "" {
			v = dotenv[key]
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if err := c.set(key, v); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
	}
	return nil
}

func (c *Config) set(key, v string) error {
	var err error
	switch key {
	case EnvCorpusRoot:
		c.CorpusRoot = v
	case EnvBudgetTokens:
		c.DefaultBudgetTokens, err = strconv.Atoi(v)
	case EnvMinConfidence:
		c.MinConfidence, err = strconv.ParseFloat(v, 64)
	case EnvRelativeMargin:
		c.RelativeMargin, err = strconv.ParseFloat(v, 64)
	case EnvLogLevel:
		c.LogLevel = strings.ToLower(v)
	case EnvWorkers:
		c.Workers, err = strconv.Atoi(v)
	}
	return err
}
