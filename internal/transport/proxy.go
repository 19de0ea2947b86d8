package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// checkProxyTimeout bounds the SOCKS5 handshake in CheckSOCKS5.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// ParseProxy parses a proxy setting. A bare "host:port" means an HTTP proxy
// used for both http and https traffic. URLs with an http, https, socks5 or
// socks5h scheme are accepted as is. An empty string returns nil.
func ParseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if !strings.Contains(raw, "://") {
		if !isValidProxyAddress(raw) {
			return nil, ErrInvalidProxyAddress
		}
		return &url.URL{Scheme: "http", Host: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidProxyAddress
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, ErrInvalidProxyAddress
	}
	if !isValidProxyAddress(u.Host) {
		return nil, ErrInvalidProxyAddress
	}
	return u, nil
}

// IsSOCKS reports whether a parsed proxy URL uses a SOCKS5 scheme.
func IsSOCKS(u *url.URL) bool {
	return u != nil && (u.Scheme == "socks5" || u.Scheme == "socks5h")
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// Bracketed IPv6 hosts are accepted.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// CheckSOCKS5 verifies that a SOCKS5 proxy accepts connections without
// authentication. Only method negotiation is performed; nothing is proxied.
func CheckSOCKS5(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + one method + "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
