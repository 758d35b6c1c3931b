package platforms

import (
	"encoding/hex"
	"encoding/json"
	"os/exec"
	"sort"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils"
	"github.com/pkg/errors"
)

// minimumSolcVersion is the oldest solc whose combined-json output we parse.
const minimumSolcVersion = "0.8.0"

// SolcCompilationConfig compiles a Solidity source file for the EVM backend with solc.
type SolcCompilationConfig struct {
	// Target is the Solidity source file to compile.
	Target string `json:"target"`

	// ContractName selects the contract within Target. It may be omitted if the file defines one deployable contract.
	ContractName string `json:"contractName,omitempty"`

	// Optimize enables the solc optimizer.
	Optimize bool `json:"optimize"`

	// Args are extra arguments passed to solc.
	Args []string `json:"args,omitempty"`
}

// NewSolcCompilationConfig returns a solc configuration for target with the optimizer enabled.
func NewSolcCompilationConfig(target string) *SolcCompilationConfig {
	return &SolcCompilationConfig{
		Target:   target,
		Optimize: true,
		Args:     []string{},
	}
}

// Platform returns the platform identifier.
func (s *SolcCompilationConfig) Platform() string {
	return "solc"
}

// Backend returns types.BackendEVM.
func (s *SolcCompilationConfig) Backend() types.Backend {
	return types.BackendEVM
}

// GetTarget returns the target for compilation
func (s *SolcCompilationConfig) GetTarget() string {
	return s.Target
}

// SetTarget sets the new target for compilation
func (s *SolcCompilationConfig) SetTarget(newTarget string) {
	s.Target = newTarget
}

// GetSystemSolcVersion obtains the version of the solc binary on PATH.
func GetSystemSolcVersion() (*semver.Version, error) {
	return getToolVersion("solc", "--version")
}

// solcCombinedOutput is the subset of `solc --combined-json abi,bin` output we consume.
type solcCombinedOutput struct {
	Contracts map[string]struct {
		Abi json.RawMessage `json:"abi"`
		Bin string          `json:"bin"`
	} `json:"contracts"`
	Version string `json:"version"`
}

// Compile runs solc on the target and returns the selected contract's init bytecode and ABI.
func (s *SolcCompilationConfig) Compile() (*types.BuildArtifact, string, error) {
	v, err := GetSystemSolcVersion()
	if err != nil {
		return nil, "", err
	}
	if err = requireMinimumVersion("solc", v, minimumSolcVersion); err != nil {
		return nil, "", err
	}

	args := []string{"--combined-json", "abi,bin"}
	if s.Optimize {
		args = append(args, "--optimize")
	}
	args = append(args, s.Args...)
	args = append(args, s.Target)

	stdout, _, combined, err := utils.RunCommandWithOutputAndError(exec.Command("solc", args...))
	if err != nil {
		return nil, string(combined), errors.Wrapf(types.ErrBuildFailed, "solc: %v\n%s", err, string(combined))
	}

	artifact, err := parseSolcCombinedJSON(stdout, s.ContractName)
	if err != nil {
		return nil, string(combined), err
	}
	artifact.SourcePath = s.Target
	artifact.Compiler = s.Platform()
	artifact.CompilerVersion = v.String()
	return artifact, string(combined), nil
}

// parseSolcCombinedJSON extracts one contract from combined-json output. Keys have the form "path:ContractName".
// Without a contract name, the output must contain exactly one contract with non-empty bytecode.
func parseSolcCombinedJSON(data []byte, contractName string) (*types.BuildArtifact, error) {
	var output solcCombinedOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, errors.Wrap(types.ErrMalformedInterface, err.Error())
	}

	var candidates []string
	for key, contract := range output.Contracts {
		name := key[strings.LastIndex(key, ":")+1:]
		if contractName != "" && name != contractName {
			continue
		}
		if contractName == "" && contract.Bin == "" {
			// Interfaces and abstract contracts have no bytecode.
			continue
		}
		candidates = append(candidates, key)
	}
	sort.Strings(candidates)

	switch {
	case len(candidates) == 0 && contractName != "":
		return nil, errors.Wrapf(types.ErrArtifactMissing, "solc output does not contain contract '%s'", contractName)
	case len(candidates) == 0:
		return nil, errors.Wrap(types.ErrArtifactMissing, "solc output does not contain a deployable contract")
	case len(candidates) > 1:
		return nil, errors.Errorf("solc output contains several candidate contracts (%s), set a contract name", strings.Join(candidates, ", "))
	}

	key := candidates[0]
	contract := output.Contracts[key]
	code, err := hex.DecodeString(strings.TrimPrefix(contract.Bin, "0x"))
	if err != nil {
		return nil, errors.Wrapf(types.ErrMalformedInterface, "bytecode of '%s' is not valid hex: %v", key, err)
	}
	return types.NewEVMArtifact(key[strings.LastIndex(key, ":")+1:], code, contract.Abi)
}
