// Package version holds build-time version information.
package version

// These are set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)
