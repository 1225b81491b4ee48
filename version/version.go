package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built software version.
	Version string = BridgeSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// BridgeSemVer is the current semantic version of the bridge.
	BridgeSemVer = "0.1.0"
)
