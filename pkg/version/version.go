// Package version exposes relkit's own build information.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/lan-dot-party/relkit/pkg/version.Version=1.2.0 ..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info is the build information reported by `relkit --version` and the API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats the build information on one line.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}

// UserAgent identifies relkit to remote APIs.
func UserAgent() string {
	return "relkit/" + Version
}
