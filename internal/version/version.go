package version

// Build metadata injected via -ldflags. Unset fields fall back to
// development defaults.

var (
	// Version is a SemVer tag like v1.2.3 for releases. Empty for dev builds.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
)

// String returns the version reported by the server API and sent by agents
// when they authenticate. Releases report Version; dev builds report
// "dev-<sha>" or plain "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return "dev-" + Commit
	}
	return "dev"
}
