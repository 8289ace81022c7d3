// commit-semver computes and recovers per-commit semantic versions in
// GitHub Actions pipelines.
package main

import (
	"os"

	"github.com/rescale/commit-semver/internal/cli"
	"github.com/rescale/commit-semver/internal/version"
)

// Version information, overridden with -ldflags "-X main.Version=..."
var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	version.Version = Version
	version.BuildTime = BuildTime

	// cli.Execute has already printed the diagnostic
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
