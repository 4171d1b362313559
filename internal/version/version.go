// Package version reports the assetflow build identity.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at release time:
// go build -ldflags "-X git.home.luguber.info/inful/assetflow/internal/version.Version=v1.2.0".
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String renders the version line printed by --version. Values not set via
// ldflags fall back to the module and VCS data embedded by the go tool.
func String() string {
	v, commit, built := Version, GitCommit, BuildTime
	if info, ok := readBuildInfo(); ok {
		if v == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" {
					commit = shortRevision(s.Value)
				}
			case "vcs.time":
				if built == "unknown" {
					built = s.Value
				}
			}
		}
	}
	return fmt.Sprintf("assetflow %s (commit %s, built %s)", v, commit, built)
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
