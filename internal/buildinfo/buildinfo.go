// Package buildinfo identifies the running build.
package buildinfo

import (
	"runtime/debug"
	"sync"
)

// Version is stamped with -ldflags "-X nkern/internal/buildinfo.Version=...".
var Version = ""

var (
	once     sync.Once
	revision string
	modified bool
)

func load() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
}

// Short returns the stamped version, else the first 12 digits of the VCS
// revision with a "+dirty" suffix for modified trees, else "dev".
func Short() string {
	if Version != "" {
		return Version
	}
	once.Do(load)
	if revision == "" {
		return "dev"
	}
	return shorten(revision, modified)
}

func shorten(rev string, dirty bool) string {
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "+dirty"
	}
	return rev
}
