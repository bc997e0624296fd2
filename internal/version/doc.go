// Package version exposes build metadata for the doorbell binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// The embedded client also reports Short in its User-Agent header.
package version
