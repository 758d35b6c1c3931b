package platforms

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils"
	"github.com/pkg/errors"
)

// minimumCargoContractVersion is the oldest cargo-contract with --output-json build results.
const minimumCargoContractVersion = "3.0.0"

// InkCompilationConfig compiles an ink! crate for the ledger backend with cargo-contract.
type InkCompilationConfig struct {
	// Target is the crate's Cargo.toml, or the directory containing it.
	Target string `json:"target"`

	// Release builds without debug assertions. Benchmarks use release builds.
	Release bool `json:"release"`

	// Args are extra arguments passed to `cargo contract build`.
	Args []string `json:"args,omitempty"`
}

// NewInkCompilationConfig returns an ink! configuration producing release builds.
func NewInkCompilationConfig(target string) *InkCompilationConfig {
	return &InkCompilationConfig{
		Target:  target,
		Release: true,
		Args:    []string{},
	}
}

// Platform returns the platform identifier.
func (s *InkCompilationConfig) Platform() string {
	return "ink"
}

// Backend returns types.BackendLedger.
func (s *InkCompilationConfig) Backend() types.Backend {
	return types.BackendLedger
}

// GetTarget returns the target for compilation
func (s *InkCompilationConfig) GetTarget() string {
	return s.Target
}

// SetTarget sets the new target for compilation
func (s *InkCompilationConfig) SetTarget(newTarget string) {
	s.Target = newTarget
}

// GetSystemCargoContractVersion obtains the version of the cargo-contract subcommand.
func GetSystemCargoContractVersion() (*semver.Version, error) {
	return getToolVersion("cargo", "contract", "--version")
}

// cargoContractBuildResult is the subset of `cargo contract build --output-json` we consume. Newer releases name the
// code blob "dest_binary" instead of "dest_wasm".
type cargoContractBuildResult struct {
	DestWasm       string `json:"dest_wasm"`
	DestBinary     string `json:"dest_binary"`
	MetadataResult *struct {
		DestMetadata string `json:"dest_metadata"`
		DestBundle   string `json:"dest_bundle"`
	} `json:"metadata_result"`
}

// manifestPath resolves the target to a Cargo.toml path.
func (s *InkCompilationConfig) manifestPath() string {
	if filepath.Base(s.Target) == "Cargo.toml" {
		return s.Target
	}
	return filepath.Join(s.Target, "Cargo.toml")
}

// Compile builds the crate and loads the Wasm blob and metadata named in cargo-contract's build result.
func (s *InkCompilationConfig) Compile() (*types.BuildArtifact, string, error) {
	v, err := GetSystemCargoContractVersion()
	if err != nil {
		return nil, "", err
	}
	if err = requireMinimumVersion("cargo-contract", v, minimumCargoContractVersion); err != nil {
		return nil, "", err
	}

	args := []string{"contract", "build", "--manifest-path", s.manifestPath(), "--output-json"}
	if s.Release {
		args = append(args, "--release")
	}
	args = append(args, s.Args...)

	stdout, _, combined, err := utils.RunCommandWithOutputAndError(exec.Command("cargo", args...))
	if err != nil {
		return nil, string(combined), errors.Wrapf(types.ErrBuildFailed, "cargo contract: %v\n%s", err, string(combined))
	}

	result, err := parseCargoContractResult(stdout)
	if err != nil {
		return nil, string(combined), err
	}
	code := result.DestWasm
	if code == "" {
		code = result.DestBinary
	}
	metadata := result.MetadataResult.DestBundle
	if metadata == "" {
		metadata = result.MetadataResult.DestMetadata
	}

	artifact, err := LoadLedgerArtifact(utils.GetFileNameWithoutExtension(code), code, metadata)
	if err != nil {
		return nil, string(combined), err
	}
	artifact.SourcePath = s.Target
	artifact.Compiler = s.Platform()
	artifact.CompilerVersion = v.String()
	return artifact, string(combined), nil
}

// parseCargoContractResult decodes the JSON build result, which is the last JSON object cargo prints on stdout.
func parseCargoContractResult(stdout []byte) (*cargoContractBuildResult, error) {
	start := bytes.IndexByte(stdout, '{')
	if start < 0 {
		return nil, errors.Wrap(types.ErrArtifactMissing, "cargo contract did not print a build result")
	}
	var result cargoContractBuildResult
	if err := json.Unmarshal(stdout[start:], &result); err != nil {
		return nil, errors.Wrap(types.ErrArtifactMissing, "could not decode cargo contract build result: "+err.Error())
	}
	if (result.DestWasm == "" && result.DestBinary == "") || result.MetadataResult == nil {
		return nil, errors.Wrap(types.ErrArtifactMissing, "cargo contract build result names no code or metadata output")
	}
	return &result, nil
}
