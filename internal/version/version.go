package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in version output, the gRPC health
// service and the Pushover User-Agent.
const Name = "temperature-monitor"

// Set through -ldflags "-X github.com/oshokin/temperature-monitor/internal/version.Version=...".
var (
	Version   = "0.1.0"
	Commit    = "none"
	BuildTime = "unknown"
)

// revisionLength is how many characters of a VCS revision are shown.
const revisionLength = 12

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Revision returns the commit injected at build time. Without one it falls
// back to the VCS stamp the go tool embeds, marking uncommitted builds.
func Revision() string {
	if Commit != "none" && Commit != "" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	var revision, modified string

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	if revision == "" {
		return Commit
	}

	if len(revision) > revisionLength {
		revision = revision[:revisionLength]
	}

	if modified == "true" {
		revision += "-dirty"
	}

	return revision
}

// Full describes the build for the version subcommand and the startup log.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		Name, Version, Revision(), BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the monitor to notification endpoints.
func UserAgent() string {
	return Name + "/" + Version
}
