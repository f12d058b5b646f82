// Package version holds the build identity of the docverse binary.
package version

import "runtime"

// Set at build time:
//
//	go build -ldflags "-X docverse/internal/version.Version=0.3.0 -X docverse/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the JSON form of the build identity.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build identity.
func Get() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: runtime.Version()}
}

// Info returns the version, followed by the short commit when known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns the multi-line form printed by the version command.
func Full() string {
	return "docverse " + Info() + "\n" +
		"commit: " + Commit + "\n" +
		"built:  " + BuildDate + "\n" +
		"go:     " + runtime.Version()
}
