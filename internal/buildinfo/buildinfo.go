// Package buildinfo holds version and build metadata. Release builds
// stamp the variables via -ldflags; other builds fall back to what the
// Go toolchain embedded in the binary.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Set at build time via -ldflags "-X .../buildinfo.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var (
	startTime = time.Now()
	fillOnce  sync.Once
)

// fill replaces unstamped values with module and VCS data from the
// binary, when present.
func fill() {
	fillOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if GitCommit == "unknown" && len(s.Value) >= 7 {
					GitCommit = s.Value[:7]
				}
			case "vcs.time":
				if BuildTime == "unknown" {
					BuildTime = s.Value
				}
			}
		}
	})
}

// BuildInfo returns build and runtime details keyed for JSON output.
func BuildInfo() map[string]string {
	fill()
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(startTime).Truncate(time.Second).String(),
	}
}

// UserAgent is the User-Agent sent on every outbound request.
func UserAgent() string {
	fill()
	return fmt.Sprintf("servicebridge/%s (+%s)", Version, runtime.GOOS)
}

// String returns a one-line summary for logging.
func String() string {
	fill()
	return fmt.Sprintf("servicebridge %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
