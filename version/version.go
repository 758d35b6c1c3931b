// Package version reports the version of the schlau binary along with the VCS metadata embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Masterminds/semver"
)

// Version is the release version. It, and the VCS variables below, may be overridden with -ldflags "-X ...".
var Version = "0.1.0"

var (
	GitCommit     = ""
	GitCommitTime = ""
	GitTreeDirty  = ""
)

// Info describes a build.
type Info struct {
	Version       string
	GitCommit     string
	GitCommitTime string
	GitTreeDirty  bool
	GoVersion     string
}

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	settings := make(map[string]string, len(buildInfo.Settings))
	for _, setting := range buildInfo.Settings {
		settings[setting.Key] = setting.Value
	}
	GitCommit = firstNonEmpty(GitCommit, settings["vcs.revision"])
	GitCommitTime = firstNonEmpty(GitCommitTime, settings["vcs.time"])
	GitTreeDirty = firstNonEmpty(GitTreeDirty, settings["vcs.modified"])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetInfo returns the information of the running binary.
func GetInfo() Info {
	return Info{
		Version:       Version,
		GitCommit:     GitCommit,
		GitCommitTime: GitCommitTime,
		GitTreeDirty:  GitTreeDirty == "true",
		GoVersion:     runtime.Version(),
	}
}

// SemVer parses the version as a semantic version.
func (i Info) SemVer() (*semver.Version, error) {
	return semver.NewVersion(i.Version)
}

// ShortCommit returns the commit hash abbreviated to 7 characters.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 7 {
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

// commit returns the abbreviated commit, marked if the tree was dirty.
func (i Info) commit() string {
	if i.GitTreeDirty {
		return i.ShortCommit() + "-dirty"
	}
	return i.ShortCommit()
}

// FormattedTime returns the commit time, or "unknown".
func (i Info) FormattedTime() string {
	if i.GitCommitTime == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, i.GitCommitTime)
	if err != nil {
		return i.GitCommitTime
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

// Short returns the version with the commit appended as semver build metadata, e.g. "0.1.0+0123456-dirty".
func (i Info) Short() string {
	if i.GitCommit == "" {
		return i.Version
	}
	return i.Version + "+" + i.commit()
}

// String returns the multi-line description printed by `schlau version`.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "schlau version %s\n", i.Version)
	if i.GitCommit != "" {
		fmt.Fprintf(&sb, "  Commit:     %s\n", i.commit())
	}
	if i.GitCommitTime != "" {
		fmt.Fprintf(&sb, "  Built:      %s\n", i.FormattedTime())
	}
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	return sb.String()
}
