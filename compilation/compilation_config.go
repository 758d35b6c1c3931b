package compilation

import (
	"encoding/json"

	"github.com/crytic/schlau/compilation/platforms"
	"github.com/crytic/schlau/compilation/types"
	"github.com/pkg/errors"
)

// CompilationConfig describes the configuration options used to compile a contract target.
type CompilationConfig struct {
	// Platform references an identifier indicating which compilation platform to use.
	Platform string `json:"platform"`

	// PlatformConfig describes the Platform-specific configuration needed to compile.
	PlatformConfig *json.RawMessage `json:"platformConfig"`
}

// NewCompilationConfig returns a CompilationConfig with default values for a given platform identifier.
func NewCompilationConfig(platform string) (*CompilationConfig, error) {
	if !IsSupportedCompilationPlatform(platform) {
		return nil, errors.Errorf("could not get default compilation configs: platform '%s' is unsupported", platform)
	}
	return NewCompilationConfigFromPlatformConfig(GetDefaultPlatformConfig(platform))
}

// NewCompilationConfigFromPlatformConfig takes a platforms.PlatformConfig and wraps it in a generic
// CompilationConfig, so that platform-specific settings can be serialized alongside the platform identifier.
func NewCompilationConfigFromPlatformConfig(platformConfig platforms.PlatformConfig) (*CompilationConfig, error) {
	b, err := json.Marshal(platformConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	platformConfigMsg := (*json.RawMessage)(&b)
	return &CompilationConfig{Platform: platformConfig.Platform(), PlatformConfig: platformConfigMsg}, nil
}

// GetPlatformConfig deserializes the inner platforms.PlatformConfig.
func (c *CompilationConfig) GetPlatformConfig() (platforms.PlatformConfig, error) {
	if !IsSupportedCompilationPlatform(c.Platform) {
		return nil, errors.Errorf("platform '%s' is unsupported", c.Platform)
	}

	// json.Unmarshal needs a concrete structure to populate, so start from the platform defaults.
	platformConfig := GetDefaultPlatformConfig(c.Platform)
	if c.PlatformConfig != nil {
		if err := json.Unmarshal(*c.PlatformConfig, platformConfig); err != nil {
			return nil, errors.Wrapf(err, "invalid '%s' platform config", c.Platform)
		}
	}
	return platformConfig, nil
}

// Backend returns the runtime the configured platform compiles for.
func (c *CompilationConfig) Backend() (types.Backend, error) {
	platformConfig, err := c.GetPlatformConfig()
	if err != nil {
		return "", err
	}
	return platformConfig.Backend(), nil
}

// Compile deserializes the platform config and compiles its target. The compiler's combined output is returned in
// either case.
func (c *CompilationConfig) Compile() (*types.BuildArtifact, string, error) {
	platformConfig, err := c.GetPlatformConfig()
	if err != nil {
		return nil, "", err
	}
	return platformConfig.Compile()
}
