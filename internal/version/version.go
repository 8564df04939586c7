package version

const devVersion = "dev"

// Version is the release of the bot, set at build time with
// -ldflags "-X github.com/rxtech-lab/argo-shortbot/internal/version.Version=v0.2.0".
var Version = devVersion

// GetVersion returns the version the binary was built with.
func GetVersion() string {
	return Version
}
