// Package version reports the probe-canary build.
//
// Release builds set the values with ldflags:
//
//	go build -ldflags="-X github.com/jannic/probe-run/internal/version.Version=v0.3.0 \
//	                   -X github.com/jannic/probe-run/internal/version.Commit=abc1234"
//
// Otherwise they come from the VCS stamp of the build, or "dev"/"unknown".
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	Version = ""
	Commit  = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		Version, Commit = fromSettings(Version, Commit, info.Settings)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings fills whichever of version and commit is empty from the
// vcs.* build settings.
func fromSettings(version, commit string, settings []debug.BuildSetting) (string, string) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if commit == "" {
		if rev := vcs["vcs.revision"]; rev != "" {
			commit = rev[:min(len(rev), 7)]
			if vcs["vcs.modified"] == "true" {
				commit += "-dirty"
			}
		}
	}
	if version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			version = "dev-" + t.UTC().Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
