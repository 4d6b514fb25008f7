// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

// Set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata for the version command.
func String() string {
	return fmt.Sprintf("llmgateway %s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
