package platforms

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// minimumSolangVersion is the oldest solang with the "polkadot" target name.
const minimumSolangVersion = "0.3.0"

// SolangCompilationConfig compiles a Solidity source file for the ledger backend with solang.
type SolangCompilationConfig struct {
	// Target is the Solidity source file to compile.
	Target string `json:"target"`

	// ContractName selects the contract output. Defaults to the file name of Target without extension.
	ContractName string `json:"contractName,omitempty"`

	// OptimizationLevel is passed to -O (none, less, default, aggressive).
	OptimizationLevel string `json:"optimizationLevel"`

	// WasmOpt is passed to --wasm-opt, e.g. "z". Empty disables it.
	WasmOpt string `json:"wasmOpt"`

	// OutputDirectory receives the .wasm and .contract files. Defaults to a fresh temporary directory.
	OutputDirectory string `json:"outputDirectory,omitempty"`

	// Args are extra arguments passed to solang.
	Args []string `json:"args,omitempty"`
}

// NewSolangCompilationConfig returns a solang configuration with the settings used for benchmarking.
func NewSolangCompilationConfig(target string) *SolangCompilationConfig {
	return &SolangCompilationConfig{
		Target:            target,
		OptimizationLevel: "aggressive",
		WasmOpt:           "z",
		Args:              []string{},
	}
}

// Platform returns the platform identifier.
func (s *SolangCompilationConfig) Platform() string {
	return "solang"
}

// Backend returns types.BackendLedger.
func (s *SolangCompilationConfig) Backend() types.Backend {
	return types.BackendLedger
}

// GetTarget returns the target for compilation
func (s *SolangCompilationConfig) GetTarget() string {
	return s.Target
}

// SetTarget sets the new target for compilation
func (s *SolangCompilationConfig) SetTarget(newTarget string) {
	s.Target = newTarget
}

// GetSystemSolangVersion obtains the version of the solang binary on PATH.
func GetSystemSolangVersion() (*semver.Version, error) {
	return getToolVersion("solang", "--version")
}

// Compile runs solang on the target and loads the resulting Wasm blob and metadata bundle.
func (s *SolangCompilationConfig) Compile() (*types.BuildArtifact, string, error) {
	v, err := GetSystemSolangVersion()
	if err != nil {
		return nil, "", err
	}
	if err = requireMinimumVersion("solang", v, minimumSolangVersion); err != nil {
		return nil, "", err
	}

	outDir := s.OutputDirectory
	if outDir == "" {
		outDir = filepath.Join(os.TempDir(), "schlau-solang-"+uuid.NewString())
	}
	if err = utils.MakeDirectory(outDir); err != nil {
		return nil, "", err
	}

	args := []string{"compile", "--target", "polkadot", "--release"}
	if s.OptimizationLevel != "" {
		args = append(args, "-O", s.OptimizationLevel)
	}
	if s.WasmOpt != "" {
		args = append(args, "--wasm-opt", s.WasmOpt)
	}
	args = append(args, s.Args...)
	args = append(args, "-o", outDir, s.Target)

	_, _, combined, err := utils.RunCommandWithOutputAndError(exec.Command("solang", args...))
	if err != nil {
		return nil, string(combined), errors.Wrapf(types.ErrBuildFailed, "solang: %v\n%s", err, string(combined))
	}

	name := s.ContractName
	if name == "" {
		name = utils.GetFileNameWithoutExtension(s.Target)
	}
	artifact, err := LoadLedgerArtifactFromDirectory(outDir, name)
	if err != nil {
		return nil, string(combined), err
	}
	artifact.SourcePath = s.Target
	artifact.Compiler = s.Platform()
	artifact.CompilerVersion = v.String()
	return artifact, string(combined), nil
}
