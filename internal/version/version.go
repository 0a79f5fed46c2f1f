// Package version holds build information set with -ldflags.
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns "posctl <version> (commit <commit>, built <date>)".
func String() string {
	return "posctl " + Version + " (commit " + Commit + ", built " + BuildDate + ")"
}
