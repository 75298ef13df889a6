// Package config loads the settings of the safejson command.
//
// Settings come from a single optional file given by the --config flag or the
// SAFEJSON_CONFIG environment variable. YAML files are read as they are; files
// ending in .json or .jsonc may contain comments and trailing commas.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/xarantolus/safejson/internal/report"
)

// EnvVar names the environment variable that points to the config file
const EnvVar = "SAFEJSON_CONFIG"

// Config holds the settings of the safejson command
type Config struct {
	// Format is the output encoding, "json" or "cbor".
	// Default: json
	Format report.Format `yaml:"format"`

	// Indent is used to indent JSON output. Empty means compact output.
	Indent string `yaml:"indent"`

	// Changes selects whether the list of changes is written together with the value.
	// Default: true
	Changes bool `yaml:"changes"`

	// Stacks includes stack traces of caught panics in the changes
	Stacks bool `yaml:"stacks"`

	// All searches the whole input, e.g. an HTML page, for objects and arrays and
	// converts each of them instead of reading a single value
	All bool `yaml:"all"`

	// Limit stops after this many values when All is set. Zero means no limit.
	Limit int `yaml:"limit"`

	// FailOnChange makes the command exit with status 2 if anything had to be changed
	FailOnChange bool `yaml:"fail_on_change"`

	// LogLevel is one of debug, info, warn or error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Format:   report.JSON,
		Changes:  true,
		LogLevel: "info",
	}
}

// Load loads the file named by SAFEJSON_CONFIG, or returns the defaults if it is not set
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
// Values not set in the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone
		data = jsonc.ToJSON(data)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads a YAML document on top of the defaults. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	var errs []error

	if !c.Format.Valid() {
		errs = append(errs, fmt.Errorf("invalid format: %q", c.Format))
	}

	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}

	if strings.Trim(c.Indent, " \t") != "" {
		errs = append(errs, fmt.Errorf("indent may only contain spaces and tabs, got %q", c.Indent))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level returns LogLevel as slog level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	return level, nil
}
