// Package version reports build information.
//
// Values are injected at build time:
//
//	go build -ldflags "-X github.com/Rohith-Pavan/Dare-Exchange/internal/version.Version=1.0.0 \
//	                   -X github.com/Rohith-Pavan/Dare-Exchange/internal/version.Commit=$(git rev-parse --short HEAD)"
//
// When Commit is not injected it is taken from the VCS stamp the Go
// toolchain embeds, if any.
package version

import "runtime/debug"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String returns "<version> (<commit>) built <time>".
func String() string {
	commit, built := Commit, BuildTime
	if commit == "unknown" || built == "unknown" {
		c, t := vcsStamp()
		if commit == "unknown" && c != "" {
			commit = c
		}
		if built == "unknown" && t != "" {
			built = t
		}
	}
	return Version + " (" + commit + ") built " + built
}

func vcsStamp() (revision, timestamp string) {
	info, ok := readBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.time":
			timestamp = s.Value
		}
	}
	return revision, timestamp
}
