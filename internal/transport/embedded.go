package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds Tor bootstrap. A cold start has to fetch
// directory information and build circuits, which usually takes minutes.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon for the duration of one command and
// exposes it as a SOCKS5 proxy for asset downloads.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout overrides DefaultTorStartupTimeout. Non-positive
// values are ignored.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor returns a stopped daemon handle.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultTorStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type launchResult struct {
	process *tornago.TorProcess
	err     error
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped, the startup timeout expires, or ctx is done. A daemon that
// finishes starting after ctx was cancelled is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("invalid Tor launch config: %w", err)
	}

	done := make(chan launchResult, 1)
	go func() {
		process, err := tornago.StartTorDaemon(cfg)
		done <- launchResult{process: process, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = res.process.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("tor daemon did not start: %w", res.err)
		}
		e.process = res.process
		e.socksAddr = res.process.SocksAddr()
		return nil
	}
}

// Stop terminates the daemon. Stopping a handle that is not running is a
// no-op.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	process := e.process
	e.process, e.socksAddr = nil, ""
	return process.Stop()
}

// SocksAddr returns host:port of the SOCKS5 listener, or "" when stopped.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// ProxyURL returns the listener as a socks5h URL for ClientOptions.Proxy,
// so host names are resolved inside Tor rather than locally.
func (e *EmbeddedTor) ProxyURL() (*url.URL, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	return &url.URL{Scheme: "socks5h", Host: e.socksAddr}, nil
}
