package model

// Artifact is the transient result of fetching one reference.
// It is consumed once by the content store, and stylesheets are also
// re-read as text by the CSS resolver.
type Artifact struct {
	// Content is the decoded body (decompressed for HTTP, decoded for data URIs).
	Content []byte

	// Origin is the URL the content came from. For data URIs it is the
	// URI itself.
	Origin string

	// Filename is the synthetic name assigned to data URI content
	// (data_url_<hash>.<ext>). Empty for HTTP fetches.
	Filename string

	// FinalURL is the URL after redirects. Empty for data URIs.
	FinalURL string

	// ContentType is the declared MIME type, if any.
	ContentType string
}

// IsDataURI reports whether the artifact was decoded from a data URI.
func (a *Artifact) IsDataURI() bool {
	return a.Filename != ""
}
