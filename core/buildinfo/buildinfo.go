// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/m3rciful/studiobot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/studiobot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/studiobot/core/buildinfo.Date=$(date -u +%FT%TZ)" ./cmd/studiobot
package buildinfo

import "fmt"

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders the build metadata for the --version flag.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
