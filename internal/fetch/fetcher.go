package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/localizer/internal/model"
)

// DefaultUserAgent is a desktop browser string; some CDNs serve reduced
// or blocked responses to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultMaxBodySize caps a single download (after decompression).
const DefaultMaxBodySize int64 = 50 << 20

// Fetcher returns the raw bytes behind a reference: decoded inline for
// data: URIs, downloaded with a single GET otherwise. There are no retries.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher that downloads with client.
// Build client with transport.NewHTTPClient so that redirects, timeouts and
// proxies are configured and transport compression is off.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the content behind rawURL.
//
// For data: URIs the artifact carries the synthetic filename
// data_url_<hash><ext>. For http(s) URLs it carries the final URL after
// redirects. When ctx is cancelled the returned error wraps ctx.Err(), so
// callers can tell cancellation apart from a fetch failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Artifact, error) {
	if IsDataURI(rawURL) {
		d, err := ParseDataURI(rawURL)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("decoded data URI", "mime", d.MIME, "bytes", len(d.Content))
		return &model.Artifact{
			Content:     d.Content,
			Origin:      rawURL,
			Filename:    d.Filename(),
			ContentType: d.MIME,
		}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	return f.get(ctx, rawURL)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*model.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")

	f.logger.Info("downloading", "url", rawURL)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download %s: %w", rawURL, ctxErr)
		}
		return nil, fmt.Errorf("download %s: %w", rawURL, unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	body, err := readLimited(resp.Body, f.maxBodySize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download %s: %w", rawURL, ctxErr)
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	if finalURL != rawURL {
		f.logger.Info("followed redirect", "from", rawURL, "to", finalURL)
	}

	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" && !strings.EqualFold(encoding, "identity") {
		f.logger.Debug("decoding compressed body", "url", finalURL, "encoding", encoding)
		decoded, err := Decompress(body, encoding, f.maxBodySize)
		if err != nil {
			// The raw bytes are still returned; some servers mislabel bodies.
			f.logger.Error("decompression failed, keeping raw body", "url", finalURL, "error", err)
		} else {
			body = decoded
		}
	}

	return &model.Artifact{
		Content:     body,
		Origin:      rawURL,
		FinalURL:    finalURL,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// unwrapURLError strips the *url.Error wrapper so messages do not repeat
// the method and URL.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

