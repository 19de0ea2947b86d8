// Package main provides the entry point for the localizer CLI.
//
// localizer copies an HTML site tree into a sibling directory and
// replaces every remote stylesheet and script with a local copy, so the
// mirror renders without network access.
//
// Usage:
//
//	localizer run <source-dir>
//	localizer run --tui --proxy socks5://127.0.0.1:1080 <source-dir>
//	localizer history [source-dir]
//
// See --help for all available options.
package main

// main is the entry point for localizer.
func main() {
	Execute()
}
