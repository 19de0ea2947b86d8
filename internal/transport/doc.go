// Package transport builds the HTTP client used to download remote assets.
//
// It supports three routes:
//   - direct, honouring the usual HTTP_PROXY environment variables
//   - an explicit upstream proxy: "host:port" or an http(s):// URL for an
//     HTTP proxy, socks5:// or socks5h:// for a SOCKS5 proxy
//   - an embedded Tor daemon started with tornago (EmbeddedTor)
//
// Every client has a fixed request timeout and redirect limit, and leaves
// response decompression to the caller.
package transport
