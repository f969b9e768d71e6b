// Package config loads statdash settings from ~/.statdash/config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/handshake"
)

// ConfigFileName is the file read from the configuration directory.
const ConfigFileName = "config.yaml"

// Environment variables that override the file.
const (
	EnvHome      = "STATDASH_HOME"
	EnvAPIURL    = "STATDASH_API_URL"
	EnvLogLevel  = "STATDASH_LOG_LEVEL"
	EnvLogFormat = "STATDASH_LOG_FORMAT"
	EnvLogFile   = "STATDASH_LOG_FILE"
	EnvEditorURL = "STATDASH_EDITOR_URL"
)

// Defaults.
const (
	DefaultAPIURL    = "http://127.0.0.1:5000"
	DefaultPageURL   = "http://127.0.0.1:5000/"
	DefaultEditorURL = "ws://127.0.0.1:5000/editor"
)

const outputTypeFile = "file"

// ErrUnknownKey is returned by Get and Set for keys outside the schema.
var ErrUnknownKey = errors.New("unknown configuration key")

// Config is the full configuration.
type Config struct {
	API      APIConfig         `yaml:"api"`
	Page     PageConfig        `yaml:"page"`
	Editor   EditorConfig      `yaml:"editor"`
	Export   ExportConfig      `yaml:"export"`
	Logging  LoggingConfig     `yaml:"logging"`
	Views    []catalog.View    `yaml:"views,omitempty"`
	Controls []catalog.Control `yaml:"controls,omitempty"`

	path string
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	VersionConstraint string        `yaml:"version_constraint"`
}

// PageConfig describes the dashboard page that permalinks point at.
type PageConfig struct {
	BaseURL   string `yaml:"base_url"`
	StartLink string `yaml:"start_link,omitempty"`
}

// EditorConfig locates the external chart editor and its handshake budget.
type EditorConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Attempts int           `yaml:"attempts"`
}

// ExportConfig controls image export.
type ExportConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Default returns the built-in configuration without reading any file or the
// environment.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           DefaultAPIURL,
			Timeout:           api.DefaultTimeout,
			VersionConstraint: api.DefaultVersionConstraint,
		},
		Page: PageConfig{BaseURL: DefaultPageURL},
		Editor: EditorConfig{
			URL:      DefaultEditorURL,
			Interval: handshake.DefaultInterval,
			Attempts: handshake.DefaultAttempts,
		},
		Export:  ExportConfig{Directory: ".", Format: chart.FormatSVG},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// New returns the defaults overlaid with the config file in the configuration
// directory, if present, and then the environment. A broken config file is
// logged and skipped so that commands such as "config init" keep working.
func New() *Config {
	cfg := Default()
	if dir, err := GetConfigDir(); err == nil {
		path := filepath.Join(dir, ConfigFileName)
		cfg.path = path
		if _, statErr := os.Stat(path); statErr == nil {
			if mergeErr := ShallowMergeYAML(cfg, path); mergeErr != nil {
				log := GetLogger()
				log.Warn().Err(mergeErr).Str("path", path).Msg("ignoring unreadable config file")
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg
}

// Load reads path over the defaults and applies the environment. Unlike New,
// a missing or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvLogFile); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := lookup(EnvEditorURL); ok && v != "" {
		c.Editor.URL = v
	}
}

// Path returns the file this config was read from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.path, err)
	}
	return nil
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := checkURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		result = multierror.Append(result, err)
	}
	if c.API.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("api.timeout must be >= 0, got %s", c.API.Timeout))
	}
	if c.API.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.API.VersionConstraint); err != nil {
			result = multierror.Append(result, fmt.Errorf("api.version_constraint: %w", err))
		}
	}
	if err := checkURL("page.base_url", c.Page.BaseURL, "http", "https"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := checkURL("editor.url", c.Editor.URL, "ws", "wss"); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Editor.Interval < 0 {
		result = multierror.Append(result, fmt.Errorf("editor.interval must be >= 0, got %s", c.Editor.Interval))
	}
	if c.Editor.Attempts < 0 {
		result = multierror.Append(result, fmt.Errorf("editor.attempts must be >= 0, got %d", c.Editor.Attempts))
	}
	switch strings.ToLower(c.Export.Format) {
	case chart.FormatSVG, chart.FormatPNG:
	default:
		result = multierror.Append(result, fmt.Errorf("export.format must be svg or png, got %q", c.Export.Format))
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "", "json", "console", "text":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if len(c.Views) > 0 || len(c.Controls) > 0 {
		if _, err := c.Catalog(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %s URL, got %q", key, strings.Join(schemes, "/"), raw)
}

// Catalog builds the view catalog. Configured views replace the built-in ones;
// configured controls are added to the built-in controls, replacing those with
// the same name.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if len(c.Views) == 0 && len(c.Controls) == 0 {
		return catalog.Default(), nil
	}

	views := c.Views
	if len(views) == 0 {
		views = catalog.DefaultViews()
	}

	controls := catalog.DefaultControls()
	index := make(map[string]int, len(controls))
	for i, ctl := range controls {
		index[ctl.Name] = i
	}
	for _, ctl := range c.Controls {
		if i, ok := index[ctl.Name]; ok {
			controls[i] = ctl
			continue
		}
		index[ctl.Name] = len(controls)
		controls = append(controls, ctl)
	}

	cat, err := catalog.New(views, controls)
	if err != nil {
		return nil, fmt.Errorf("building view catalog: %w", err)
	}
	return cat, nil
}

// Get returns the value of a dotted scalar key such as "api.base_url".
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.timeout":
		return c.API.Timeout.String(), nil
	case "api.version_constraint":
		return c.API.VersionConstraint, nil
	case "page.base_url":
		return c.Page.BaseURL, nil
	case "page.start_link":
		return c.Page.StartLink, nil
	case "editor.url":
		return c.Editor.URL, nil
	case "editor.interval":
		return c.Editor.Interval.String(), nil
	case "editor.attempts":
		return strconv.Itoa(c.Editor.Attempts), nil
	case "export.directory":
		return c.Export.Directory, nil
	case "export.format":
		return c.Export.Format, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set assigns a dotted scalar key from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api.base_url":
		c.API.BaseURL = value
	case "api.timeout":
		return setDuration(&c.API.Timeout, key, value)
	case "api.version_constraint":
		c.API.VersionConstraint = value
	case "page.base_url":
		c.Page.BaseURL = value
	case "page.start_link":
		c.Page.StartLink = value
	case "editor.url":
		c.Editor.URL = value
	case "editor.interval":
		return setDuration(&c.Editor.Interval, key, value)
	case "editor.attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Editor.Attempts = n
	case "export.directory":
		c.Export.Directory = value
	case "export.format":
		c.Export.Format = value
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// Keys lists every key accepted by Get and Set.
func Keys() []string {
	return []string{
		"api.base_url", "api.timeout", "api.version_constraint",
		"page.base_url", "page.start_link",
		"editor.url", "editor.interval", "editor.attempts",
		"export.directory", "export.format",
		"logging.level", "logging.format", "logging.file",
	}
}
