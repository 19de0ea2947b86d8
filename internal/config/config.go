package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/localizer/internal/fetch"
	"github.com/nao1215/localizer/internal/transport"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "localizer"

	// DefaultTimeout bounds every asset download.
	DefaultTimeout = transport.DefaultTimeout

	// DefaultMaxRedirects is the number of redirects followed per download.
	DefaultMaxRedirects = transport.DefaultMaxRedirects

	// DefaultUserAgent is sent with every download.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits a single decoded download.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = transport.DefaultTorStartupTimeout

	// ProxyEnv is the environment variable consulted for a proxy address.
	ProxyEnv = "LOCALIZER_PROXY"
)

// ReportFormat selects how the run report is rendered.
type ReportFormat string

const (
	// ReportText is the plain text summary (default).
	ReportText ReportFormat = "text"
	// ReportJSON is the full report as JSON.
	ReportJSON ReportFormat = "json"
	// ReportMarkdown is a GitHub Flavored Markdown report.
	ReportMarkdown ReportFormat = "markdown"
)

// Config holds all options of one localization run.
// It is populated from CLI flags, the environment and the config file,
// and passed down explicitly rather than kept in global state.
type Config struct {
	// SourceDir is the root of the site to localize.
	SourceDir string `validate:"required"`

	// Proxy is the upstream proxy address (http://, https://, socks5://,
	// socks5h:// or bare host:port). Empty means a direct connection.
	Proxy string

	// UseTor starts an embedded Tor daemon and routes downloads through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration `validate:"gt=0"`

	// Timeout bounds each download.
	Timeout time.Duration `validate:"gt=0"`

	// MaxRedirects is the redirect limit per download.
	MaxRedirects int `validate:"gte=0"`

	// UserAgent is the User-Agent header sent with downloads.
	UserAgent string

	// MaxBodySize limits a single decoded download in bytes.
	MaxBodySize int64 `validate:"gt=0"`

	// ReportFormat selects the report renderer.
	ReportFormat ReportFormat `validate:"oneof=text json markdown"`

	// ReportFile is where the report is written. Empty means stdout.
	ReportFile string

	// RecordHistory saves the run to the history database.
	RecordHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// InspectImages scans localized images for EXIF metadata.
	InspectImages bool

	// Interactive runs the terminal UI.
	Interactive bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		ReportFormat:      ReportText,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for localizer.
// On Linux: ~/.local/share/localizer
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for localizer.
// On Linux: ~/.config/localizer
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return ErrNoSource
	}

	info, err := os.Stat(c.SourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotDir, c.SourceDir)
	}

	if c.Proxy != "" && c.UseTor {
		return ErrConflictingProxy
	}
	if c.Proxy != "" {
		if _, err := transport.ParseProxy(c.Proxy); err != nil {
			return err
		}
	}

	return translate(validator.New().Struct(c))
}

// translate maps struct tag failures to the package's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	switch fe.Field() {
	case "SourceDir":
		return ErrNoSource
	case "ReportFormat":
		return fmt.Errorf("%w: %q", ErrInvalidReportFormat, fe.Value())
	case "Timeout", "TorStartupTimeout":
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, fe.Field())
	case "MaxBodySize":
		return ErrInvalidMaxBodySize
	default:
		return fmt.Errorf("invalid %s: %s", fe.Field(), fe.Tag())
	}
}

// ProxyURL returns the parsed proxy, or nil when no proxy is configured.
func (c *Config) ProxyURL() (*url.URL, error) {
	return transport.ParseProxy(c.Proxy)
}
