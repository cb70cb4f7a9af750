package version

import "fmt"

var (
	// Version is the release of the launcher toolset. It can be overridden via ldflags.
	// Keep every component zero-padded to two digits: update checks compare versions as plain strings.
	Version = "01.00.00"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the release string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
