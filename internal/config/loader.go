package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for in the
// current and home directories.
const DefaultConfigFile = ".localizer"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// Flag names whose explicit use on the command line wins over the
// environment and the configuration file.
const (
	FlagProxy         = "proxy"
	FlagUserAgent     = "user-agent"
	FlagTor           = "tor"
	FlagHistory       = "history"
	FlagInspectImages = "inspect-images"
	FlagJSON          = "json"
	FlagMarkdown      = "markdown"
)

// File represents the structure of the .localizer configuration file.
// Every key is optional.
type File struct {
	// Proxy is the upstream proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Tor enables the embedded Tor daemon.
	Tor bool `yaml:"tor,omitempty"`

	// History records every run in the history database.
	History bool `yaml:"history,omitempty"`

	// InspectImages enables the EXIF audit of localized images.
	InspectImages bool `yaml:"inspectImages,omitempty"`

	// Report is the default report format: text, json or markdown.
	Report string `yaml:"report,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .localizer in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .localizer in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), XDGConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overwritten; a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyFile copies values from the configuration file into c for every
// setting whose flag was not given explicitly. changed reports whether a
// flag was set on the command line.
func (c *Config) ApplyFile(f *File, changed func(flag string) bool) error {
	if f == nil {
		return nil
	}

	if f.Proxy != "" && !changed(FlagProxy) {
		c.Proxy = f.Proxy
	}
	if f.UserAgent != "" && !changed(FlagUserAgent) {
		c.UserAgent = f.UserAgent
	}
	if f.Tor && !changed(FlagTor) {
		c.UseTor = true
	}
	if f.History && !changed(FlagHistory) {
		c.RecordHistory = true
	}
	if f.InspectImages && !changed(FlagInspectImages) {
		c.InspectImages = true
	}
	if f.Report != "" && !changed(FlagJSON) && !changed(FlagMarkdown) {
		format := ReportFormat(f.Report)
		switch format {
		case ReportText, ReportJSON, ReportMarkdown:
			c.ReportFormat = format
		default:
			return fmt.Errorf("%w: %q", ErrInvalidReportFormat, f.Report)
		}
	}
	return nil
}

// ApplyEnv copies values from the environment into c for every setting
// whose flag was not given explicitly. It runs after ApplyFile, so the
// environment wins over the configuration file.
func (c *Config) ApplyEnv(lookup func(key string) (string, bool), changed func(flag string) bool) {
	if v, ok := lookup(ProxyEnv); ok && v != "" && !changed(FlagProxy) {
		c.Proxy = v
	}
}

// Load finds and applies the configuration file, then the environment.
// A missing file is only an error when ConfigFilePath was set explicitly.
func (c *Config) Load(changed func(flag string) bool) error {
	path := FindConfigFile(c.ConfigFilePath)
	if path == "" && c.ConfigFilePath != "" {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, c.ConfigFilePath)
	}

	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return err
		}
		if err := c.ApplyFile(f, changed); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	c.ApplyEnv(os.LookupEnv, changed)
	return nil
}
