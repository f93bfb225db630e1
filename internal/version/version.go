package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String renders the version for `qrscan version` and the health endpoint.
func String() string {
	return fmt.Sprintf("qrscan %s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
