package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still printing a readable message.
var (
	// ErrNoSource is returned when no source directory was given.
	ErrNoSource = errors.New("no source directory specified")

	// ErrSourceNotDir is returned when the source path does not exist or is
	// not a directory.
	ErrSourceNotDir = errors.New("source path is not a directory")

	// ErrConflictingProxy is returned when both --proxy and --tor are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrInvalidReportFormat is returned for a report format other than
	// text, json or markdown, or when --json and --markdown are combined.
	ErrInvalidReportFormat = errors.New("invalid report format: must be one of text, json, markdown")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
