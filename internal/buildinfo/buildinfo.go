// Package buildinfo contains build-time metadata separate from user
// configuration.
package buildinfo

import "fmt"

// Set at build time via -ldflags.
var (
	// Version holds the Git version tag from build.
	Version = "dev"

	// BuildDate is the time when the binary was built.
	BuildDate = "unknown"
)

// String formats the version for CLI output.
func String() string {
	return fmt.Sprintf("%s (built %s)", Version, BuildDate)
}
