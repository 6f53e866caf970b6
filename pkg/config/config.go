// Package config loads citelens settings from YAML.
//
//	space_before_page_number: true
//	bind_edit_keys: true
//	bibliography:
//	  - refs.bib
//	database: refs.sqlite
//	log:
//	  level: info
//	  format: text
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/citelens/pkg/format"
)

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json"`
}

// Config holds every recognized option.
type Config struct {
	// SpaceBeforePageNumber controls the space after "p."/"pp.".
	SpaceBeforePageNumber *bool `yaml:"space_before_page_number,omitempty" json:"space_before_page_number,omitempty"`

	// BindEditKeys enables the link edit and delete commands.
	BindEditKeys *bool `yaml:"bind_edit_keys,omitempty" json:"bind_edit_keys,omitempty"`

	// Bibliography lists BibTeX files, relative to the config file.
	Bibliography []string `yaml:"bibliography,omitempty" json:"bibliography,omitempty" validate:"dive,required"`

	// Database is an optional SQLite bibliography store.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	Log LogConfig `yaml:"log" json:"log"`

	// FormatFunc overrides per-key formatting. Not loadable from YAML.
	FormatFunc format.FormatFunc `yaml:"-" json:"-"`
}

var configValidate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Log: LogConfig{Level: "warn", Format: "text"}}
}

// Load reads a YAML config file. Relative bibliography and database paths
// are resolved against the file's directory. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, bib := range cfg.Bibliography {
		cfg.Bibliography[i] = resolvePath(base, bib)
	}
	if cfg.Database != "" {
		cfg.Database = resolvePath(base, cfg.Database)
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return fmt.Errorf("invalid config field %s: failed %q check", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SpaceBeforePage returns the effective space_before_page_number (default
// true).
func (c *Config) SpaceBeforePage() bool {
	return c.SpaceBeforePageNumber == nil || *c.SpaceBeforePageNumber
}

// EditKeysBound returns the effective bind_edit_keys (default true).
func (c *Config) EditKeysBound() bool {
	return c.BindEditKeys == nil || *c.BindEditKeys
}

// Formatter builds the formatter these settings describe.
func (c *Config) Formatter() *format.Formatter {
	formatter := format.New(format.Options{SpaceBeforePage: c.SpaceBeforePage()})
	formatter.Func = c.FormatFunc
	return formatter
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(base, path)
}
