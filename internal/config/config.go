// Package config loads sheet2xml settings from a TOML file with
// environment overrides.
//
// Lookup order:
//   - the path in SHEET2XML_CONFIG, or the --config flag
//   - ~/.sheet2xml/config.toml
//   - built-in defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL            = "http://localhost:8000"
	DefaultTimeoutSecs       = 30
	DefaultRequestsPerMinute = 100
	DefaultListen            = ":3000"
	DefaultTheme             = "monokai"

	dirName  = ".sheet2xml"
	fileName = "config.toml"
)

type Config struct {
	// APIURL is the base URL of the conversion service.
	APIURL      string `toml:"api_url"`
	TimeoutSecs int    `toml:"timeout_secs"`
	// DownloadDir receives converted documents. Empty means next to the
	// input file.
	DownloadDir string `toml:"download_dir"`
	// RequestsPerMinute throttles outgoing requests; 0 disables it.
	RequestsPerMinute int `toml:"requests_per_minute"`

	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Preview PreviewConfig `toml:"preview"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type PreviewConfig struct {
	// Escape renders values with XML escaping instead of verbatim.
	Escape    bool   `toml:"escape"`
	Highlight bool   `toml:"highlight"`
	Theme     string `toml:"theme"`
}

// Default returns the built-in configuration.
func Default() *Config {
	logFile := ""
	if dir, err := Dir(); err == nil {
		logFile = filepath.Join(dir, "sheet2xml.log")
	}
	return &Config{
		APIURL:            DefaultAPIURL,
		TimeoutSecs:       DefaultTimeoutSecs,
		RequestsPerMinute: DefaultRequestsPerMinute,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			File:   logFile,
		},
		Server:  ServerConfig{Listen: DefaultListen},
		Preview: PreviewConfig{Highlight: true, Theme: DefaultTheme},
	}
}

// Dir returns ~/.sheet2xml.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

// Path returns the config file to read: SHEET2XML_CONFIG if set, else the
// default location.
func Path() (string, error) {
	if p := os.Getenv("SHEET2XML_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the default config file if it exists. A missing file is not an
// error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path over the defaults, then applies environment
// overrides and validates. A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies:
//   - SHEET2XML_API_URL: overrides api_url
//   - SHEET2XML_LOG_LEVEL: overrides log.level
//   - SHEET2XML_LISTEN: overrides server.listen
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("SHEET2XML_API_URL"); u != "" {
		c.APIURL = u
	}
	if level := os.Getenv("SHEET2XML_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if listen := os.Getenv("SHEET2XML_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}
}

// SetDefaults fills zero values left by a partial file.
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = DefaultTimeoutSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Preview.Theme == "" {
		c.Preview.Theme = DefaultTheme
	}
}

// ValidationError describes one bad setting.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Message)
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{"api_url", c.APIURL, "must be an absolute http(s) URL"})
	}
	if c.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{"timeout_secs", c.TimeoutSecs, "must be positive"})
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{"requests_per_minute", c.RequestsPerMinute, "must not be negative"})
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"log.level", c.Log.Level, "must be debug, info, warn or error"})
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{"log.format", c.Log.Format, "must be json or console"})
	}

	return errors.Join(errs...)
}

// Timeout returns the request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// APIOrigin returns scheme://host of the API URL, for the CSP header.
func (c *Config) APIOrigin() string {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
