// Package audit inspects localized images for EXIF metadata that a site
// owner may not want to republish: GPS coordinates, device serial numbers,
// author names and similar.
//
// The audit reads only files already written to the mirror; it never
// downloads anything.
package audit
