package version

import "fmt"

// Set at build time with -ldflags "-X speakdrill/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Full() string {
	return fmt.Sprintf("speakdrill %s, commit %s, built at %s", Version, Commit, Date)
}
