// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for `canopy version`.
func String() string {
	return fmt.Sprintf("canopy version %s (%s, built %s)", Version, GitSHA, BuildTime)
}
