// Package version reports the build version.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.1.0"

// Commit is set at build time with -ldflags "-X .../internal/version.Commit=<sha>".
var Commit = "unknown"

// String formats the version for CLI output.
func String() string {
	return Current + " (" + Commit + ")"
}
