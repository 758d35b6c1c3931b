package config

import (
	"github.com/crytic/schlau/compilation"
	"github.com/crytic/schlau/compilation/types"
	"github.com/rs/zerolog"
)

// GetDefaultProjectConfig obtains a default configuration for a project. It populates a default compilation config
// and an example workload based on the provided platform, or neither if an empty string is provided.
func GetDefaultProjectConfig(platform string) (*ProjectConfig, error) {
	var (
		compilationConfig *compilation.CompilationConfig
		workloads         []WorkloadConfig
		err               error
	)
	if platform != "" {
		compilationConfig, err = compilation.NewCompilationConfig(platform)
		if err != nil {
			return nil, err
		}
		backend, err := compilationConfig.Backend()
		if err != nil {
			return nil, err
		}
		workloads = defaultWorkloads(backend)
	}

	projectConfig := &ProjectConfig{
		Compilation: compilationConfig,
		Sandbox: SandboxConfig{
			DebugOutput:    false,
			CacheDirectory: ".schlau",
		},
		Workloads: workloads,
		Logging: LoggingConfig{
			Level:        zerolog.InfoLevel,
			LogDirectory: "",
			NoColor:      false,
		},
	}
	return projectConfig, nil
}

// defaultWorkloads returns an example workload calling a triangle number computation.
func defaultWorkloads(backend types.Backend) []WorkloadConfig {
	workload := WorkloadConfig{
		Name:       "triangle_number",
		Message:    "triangle_number",
		Args:       []ArgumentConfig{{Type: "int64", Value: "3000000"}},
		Iterations: 10,
	}
	if backend == types.BackendLedger {
		workload.Constructor = "new"
	}
	return []WorkloadConfig{workload}
}
