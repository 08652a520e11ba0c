// Package version reports the running build in logs and health responses.
package version

import "runtime/debug"

// AppName prefixes version strings in logs and user agents.
const AppName = "bearmemori"

// stamped is filled by -ldflags for builds without a .git checkout.
var stamped string

// Version is the short commit hash of the build, or "dev" when neither a
// stamp nor VCS metadata is present.
var Version = resolve()

// Full returns "bearmemori/<version>".
func Full() string {
	return AppName + "/" + Version
}

func resolve() string {
	if stamped != "" {
		return shorten(stamped)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
