package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/version.Version=...".
var (
	// Version is the protoease release, e.g. 0.1.0.
	Version = "0.1.0"
	// Commit is the short git hash of the build.
	Commit = "dev"
	// BuildDate is the UTC build time in RFC 3339 form.
	BuildDate = "unknown"
)

// Full returns the version line printed by `protoease version`.
func Full() string {
	return fmt.Sprintf("protoease %s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}
