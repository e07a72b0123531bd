// Package version carries build-time version information, set via
// -ldflags "-X github.com/nimbusproxy/nimbus/internal/version.Version=...".
package version

// Set at build time. Defaults identify a from-source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
