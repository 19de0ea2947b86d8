package fetch

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/localizer/internal/store"
)

// mimeExtensions maps data URI media types to file extensions.
var mimeExtensions = map[string]string{
	"image/svg+xml":                 ".svg",
	"image/png":                     ".png",
	"image/jpeg":                    ".jpg",
	"image/gif":                     ".gif",
	"image/webp":                    ".webp",
	"image/x-icon":                  ".ico",
	"application/font-woff":         ".woff",
	"application/font-woff2":        ".woff2",
	"application/x-font-ttf":        ".ttf",
	"application/vnd.ms-fontobject": ".eot",

	// registered font types
	"font/woff":  ".woff",
	"font/woff2": ".woff2",
	"font/ttf":   ".ttf",
}

// UnknownExtension is used for media types missing from the table.
const UnknownExtension = ".bin"

// ExtensionForMIME returns the file extension for a media type.
// Parameters and case are ignored.
func ExtensionForMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	if ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(mime))]; ok {
		return ext
	}
	return UnknownExtension
}

// IsDataURI reports whether ref uses the data: scheme.
func IsDataURI(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

// DataURI is a decoded data: URI.
type DataURI struct {
	// MIME is the bare media type, e.g. "image/png".
	MIME string

	// Content is the decoded payload.
	Content []byte
}

// Filename returns the synthetic name data_url_<hash><ext> for the payload.
func (d DataURI) Filename() string {
	return "data_url_" + store.Fingerprint(d.Content) + ExtensionForMIME(d.MIME)
}

// ParseDataURI decodes data:<mime>[;param]*[;base64],<payload>.
// Base64 payloads are decoded; other payloads are percent-decoded.
// A missing comma, an empty media type, an empty payload or an
// undecodable payload returns ErrMalformedDataURI.
func ParseDataURI(raw string) (DataURI, error) {
	if !IsDataURI(raw) {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrMalformedDataURI)
	}

	header, payload, found := strings.Cut(raw[len("data:"):], ",")
	if !found {
		return DataURI{}, fmt.Errorf("%w: missing comma", ErrMalformedDataURI)
	}
	if payload == "" {
		return DataURI{}, fmt.Errorf("%w: empty payload", ErrMalformedDataURI)
	}

	params := strings.Split(header, ";")
	mime := strings.ToLower(strings.TrimSpace(params[0]))
	if mime == "" {
		return DataURI{}, fmt.Errorf("%w: empty media type", ErrMalformedDataURI)
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var content []byte
	if isBase64 {
		decoded, err := decodeBase64(payload)
		if err != nil {
			return DataURI{}, fmt.Errorf("%w: %w", ErrMalformedDataURI, err)
		}
		content = decoded
	} else {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return DataURI{}, fmt.Errorf("%w: %w", ErrMalformedDataURI, err)
		}
		content = []byte(decoded)
	}

	return DataURI{MIME: mime, Content: content}, nil
}

// decodeBase64 accepts padded and unpadded payloads, ignoring whitespace
// and percent-encoded padding that CSS minifiers sometimes leave behind.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Join(strings.Fields(payload), "")
	if strings.Contains(payload, "%") {
		if unescaped, err := url.PathUnescape(payload); err == nil {
			payload = unescaped
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}
