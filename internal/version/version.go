// Package version carries build metadata stamped in with -ldflags "-X".
package version

//nolint:revive // overwritten by the linker
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders "<version> (commit <sha>, built <date>)".
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
