// Package version exposes build-time version information.
package version

import "fmt"

// Set at build time via -ldflags:
//
//	-X github.com/HerbHall/routeforge/internal/version.Version=v0.2.0
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string { return Version }

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("routeforge %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
