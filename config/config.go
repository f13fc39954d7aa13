package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "librarydesk.yaml"

// Config is the file-backed configuration of the librarydesk CLI.
type Config struct {
	DatabasePath string   `yaml:"databasePath"`
	LogLevel     string   `yaml:"logLevel"`
	Locale       string   `yaml:"locale"`
	DefaultView  string   `yaml:"defaultView"`
	Categories   []string `yaml:"categories"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath: "library.db",
		LogLevel:     "info",
		Locale:       "en",
		DefaultView:  "list",
		Categories:   []string{"Fiction", "Non-Fiction", "Science", "History"},
	}
}

// Load reads config from path (defaults to DefaultPath). A missing file is
// not an error; defaults and environment overrides still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	// Override with environment variables
	if v := os.Getenv("LIBRARYDESK_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("LIBRARYDESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LIBRARYDESK_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("LIBRARYDESK_VIEW"); v != "" {
		cfg.DefaultView = v
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LanguageTag parses Locale. Call after Load, which has validated it.
func (c Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return errors.New("config: databasePath is required")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", cfg.LogLevel)
	}
	if _, err := language.Parse(cfg.Locale); err != nil {
		return fmt.Errorf("config: invalid locale %q: %w", cfg.Locale, err)
	}
	switch strings.ToLower(cfg.DefaultView) {
	case "list", "grid", "table":
	default:
		return fmt.Errorf("config: unknown defaultView %q", cfg.DefaultView)
	}
	if len(cfg.Categories) == 0 {
		return errors.New("config: categories cannot be empty")
	}
	return nil
}
