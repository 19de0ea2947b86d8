// Package fetch retrieves the bytes behind an asset reference.
//
// data: URIs are decoded inline and named data_url_<hash><ext> from a
// fixed media type table. http(s) URLs are downloaded with a browser-like
// request; gzip, deflate and br bodies are decoded here because the
// transport's own decompression is switched off.
//
// Every failure is returned as an error. Callers decide whether a failure
// leaves one reference unlocalized or stops the run.
package fetch
