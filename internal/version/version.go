// Package version provides build information. Values are set at build time
// with ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/nft-rarity/internal/version.Version=v1.2.3"
package version

import "runtime"

// Build metadata, overridden via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}
