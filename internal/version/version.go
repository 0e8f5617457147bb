// Package version reports build information for the service and tools.
package version

import "fmt"

// Name is the service name reported on GET /.
const Name = "flame-pdf"

// Set at build time with -ldflags "-X github.com/Mocca-flames/flame-pdf/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the build information for logs and --version output.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, GitCommit, BuildTime)
}
