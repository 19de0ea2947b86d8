package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds every request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirects followed before a
	// request fails.
	DefaultMaxRedirects = 5
)

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	// Proxy is the upstream proxy, or nil for a direct connection.
	// Use ParseProxy to build it from user input.
	Proxy *url.URL

	// Timeout is the overall request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRedirects is the redirect limit. Zero means DefaultMaxRedirects.
	MaxRedirects int
}

// NewHTTPClient creates the HTTP client used for every asset download.
//
// Transport compression is disabled: the client advertises
// gzip, deflate and br itself and the fetcher decodes bodies, so the
// transport must not strip Content-Encoding behind its back.
// An HTTP(S) proxy is applied with http.ProxyURL; a SOCKS5 proxy replaces
// the dialer, so DNS is resolved by the proxy.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	transport := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	switch {
	case opts.Proxy == nil:
		transport.Proxy = http.ProxyFromEnvironment
	case IsSOCKS(opts.Proxy):
		dialer, err := proxy.FromURL(opts.Proxy, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(dialer)
	default:
		transport.Proxy = http.ProxyURL(opts.Proxy)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer from x/net/proxy implements proxy.ContextDialer;
// other dialers are wrapped so a cancelled context still returns promptly.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			go func() {
				if r := <-resultCh; r.conn != nil {
					_ = r.conn.Close() //nolint:errcheck // abandoned dial
				}
			}()
			return nil, ctx.Err()
		}
	}
}
