package version

import (
	"runtime/debug"
	"strings"
)

var (
	// Version is set at build time with -ldflags "-X .../internal/version.Version=v1.2.3".
	// Falls back to the module version embedded by go install.
	Version = "dev"

	// Commit is the VCS revision, filled from build info when not set by ldflags.
	Commit = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	if Commit == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				Commit = s.Value
			}
		}
	}
}

// String returns the version with a short commit suffix when known.
func String() string {
	if Commit == "" {
		return Version
	}
	short := strings.TrimSpace(Commit)
	if len(short) > 7 {
		short = short[:7]
	}
	return Version + "+" + short
}
