package platforms

import "github.com/crytic/schlau/compilation/types"

// PlatformConfig describes the interface all compilation platform configs must implement. Each platform shells out
// to an external compiler and normalizes its output into a types.BuildArtifact.
type PlatformConfig interface {
	// Compile builds the configured target, returning the artifact and the compiler's combined output.
	Compile() (*types.BuildArtifact, string, error)

	// Platform returns the platform identifier, e.g. "solc".
	Platform() string

	// Backend returns the runtime the platform compiles for.
	Backend() types.Backend

	// GetTarget returns the source path to compile.
	GetTarget() string

	// SetTarget changes the source path to compile.
	SetTarget(string)
}

// CompileContract builds the source at sourcePath with the given platform, leaving the platform's configured target
// untouched.
func CompileContract(platform PlatformConfig, sourcePath string) (*types.BuildArtifact, error) {
	previous := platform.GetTarget()
	platform.SetTarget(sourcePath)
	defer platform.SetTarget(previous)

	artifact, _, err := platform.Compile()
	return artifact, err
}
