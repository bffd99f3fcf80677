// Package version carries the build metadata stamped in at link time.
package version

import "time"

// Stamped via -ldflags, for example:
//
//	-X github.com/calvergne/panelkit/internal/version.Version=v0.2.0
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Resolve returns the stamped metadata, substituting a fallback version for
// unstamped builds: the build time when present, otherwise the current UTC
// time.
func Resolve() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if info.Version == "" {
		info.Version = info.BuildTime
	}
	if info.Version == "" {
		info.Version = time.Now().UTC().Format("20060102T150405Z")
	}
	return info
}

// String renders the version with an abbreviated commit, suitable for a
// one-line banner.
func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	commit := info.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return info.Version + " (" + commit + ")"
}
