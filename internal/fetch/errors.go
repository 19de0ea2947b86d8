package fetch

import (
	"errors"

	"github.com/nao1215/localizer/internal/transport"
)

var (
	// ErrMalformedDataURI is returned for data: URIs that cannot be decoded.
	ErrMalformedDataURI = errors.New("malformed data URI")

	// ErrHTTPStatus is returned when the final response status is 400 or
	// above. It is wrapped with the status line.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTooManyRedirects is returned when a download redirects more than
	// the client allows.
	ErrTooManyRedirects = transport.ErrTooManyRedirects

	// ErrBodyTooLarge is returned when a (decoded) body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUnsupportedScheme is returned for URLs that are neither http(s)
	// nor data:.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)
