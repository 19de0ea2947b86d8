// Package store assigns local filenames to fetched assets and writes them
// into the mirror's static directories.
//
// Filenames are derived from the origin URL and de-duplicated by content
// fingerprint through a per-run Ledger:
//   - an unseen name is accepted as is
//   - a seen name with the same content is reused without rewriting the file
//   - a seen name with different content gets "_<hash>" before its extension
package store
