package config

import (
	"encoding/json"
	"math/big"
	"os"

	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation"
	"github.com/crytic/schlau/compilation/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultProjectConfigFilename is the configuration file the CLI looks for in the working directory.
const DefaultProjectConfigFilename = "schlau.json"

// ProjectConfig describes how a contract is built and which workloads are executed against it.
type ProjectConfig struct {
	// Compilation describes the configuration used to compile the underlying contract.
	Compilation *compilation.CompilationConfig `json:"compilation"`

	// Sandbox describes the execution environment workloads run in.
	Sandbox SandboxConfig `json:"sandbox"`

	// Workloads are the deploy-and-call scenarios executed by the run command.
	Workloads []WorkloadConfig `json:"workloads"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"logging"`
}

// SandboxConfig describes the configuration options of the contract sandboxes.
type SandboxConfig struct {
	// DebugOutput enables collection of contract debug messages on the ledger backend and logs them at debug level.
	DebugOutput bool `json:"debugOutput"`

	// FundingAmount is minted into every dev account when a sandbox is created. Nil selects the backend default.
	FundingAmount *Amount `json:"fundingAmount,omitempty"`

	// CodeSizeCheckDisabled lifts the EVM contract code size limit.
	CodeSizeCheckDisabled bool `json:"codeSizeCheckDisabled"`

	// CacheDirectory holds the build artifact cache. If empty, artifacts are rebuilt on every run.
	CacheDirectory string `json:"cacheDirectory"`
}

// WorkloadConfig describes a contract deployment followed by repeated calls of one message.
type WorkloadConfig struct {
	// Name identifies the workload in reports.
	Name string `json:"name"`

	// Contract is the name of the contract the workload targets. If empty, the built contract is used, otherwise it
	// must match the name of the built contract.
	Contract string `json:"contract,omitempty"`

	// Constructor names the ledger constructor to deploy with. It is ignored on the EVM, which has one constructor.
	Constructor string `json:"constructor,omitempty"`

	// ConstructorArgs are the constructor arguments.
	ConstructorArgs []ArgumentConfig `json:"constructorArgs,omitempty"`

	// Message is the message or function to call, by name or, for overloaded EVM functions, by signature.
	Message string `json:"message"`

	// Args are the message arguments.
	Args []ArgumentConfig `json:"args,omitempty"`

	// Value is transferred with every call.
	Value *Amount `json:"value,omitempty"`

	// Caller is the dev account that deploys and calls. Defaults to "alice".
	Caller string `json:"caller,omitempty"`

	// Iterations is the number of times the call is executed.
	Iterations int `json:"iterations"`

	// MaxGasLimit executes the deployment and every call with the maximum gas limit.
	MaxGasLimit bool `json:"maxGasLimit"`
}

// LoggingConfig describes the configuration options used for logging.
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	Level zerolog.Level `json:"level"`

	// LogDirectory describes the directory where structured log files will be written. If empty, no log files are
	// kept.
	LogDirectory string `json:"logDirectory"`

	// NoColor disables colored console output.
	NoColor bool `json:"noColor"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path. Fields missing from the
// file keep their default values.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	projectConfig, err := GetDefaultProjectConfig("")
	if err != nil {
		return nil, err
	}
	// Workloads are replaced rather than merged.
	projectConfig.Workloads = nil
	if err = json.Unmarshal(b, projectConfig); err != nil {
		return nil, errors.Wrapf(err, "could not parse project config '%s'", path)
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Backend returns the runtime the configured compilation platform targets.
func (p *ProjectConfig) Backend() (types.Backend, error) {
	if p.Compilation == nil {
		return "", errors.New("no compilation config")
	}
	return p.Compilation.Backend()
}

// Validate validates that the ProjectConfig meets certain requirements.
func (p *ProjectConfig) Validate() error {
	backend, err := p.Backend()
	if err != nil {
		return errors.Wrap(err, "invalid compilation config")
	}

	if amount := p.Sandbox.FundingAmount; amount != nil {
		if amount.Int().Cmp(new(big.Int).SetUint64(accounts.FundingAmount)) < 0 {
			return errors.Errorf("funding amount %s is below the minimum of %d", amount, accounts.FundingAmount)
		}
		if backend == types.BackendLedger && !amount.FitsLedgerBalance() {
			return errors.Errorf("funding amount %s exceeds the ledger balance range", amount)
		}
		if _, err = amount.Uint256(); err != nil {
			return err
		}
	}

	names := make(map[string]bool, len(p.Workloads))
	for i, workload := range p.Workloads {
		if err = workload.validate(backend); err != nil {
			return errors.Wrapf(err, "workload %d ('%s')", i, workload.Name)
		}
		if names[workload.Name] {
			return errors.Errorf("workload name '%s' is used more than once", workload.Name)
		}
		names[workload.Name] = true
	}
	return nil
}

func (w *WorkloadConfig) validate(backend types.Backend) error {
	if w.Name == "" {
		return errors.New("workload name must not be empty")
	}
	if w.Message == "" {
		return errors.New("message must not be empty")
	}
	if w.Iterations <= 0 {
		return errors.New("iterations must be a positive number")
	}
	if !isDevAccount(w.CallerName(), backend) {
		return errors.Errorf("caller '%s' is not a dev account", w.CallerName())
	}
	if backend == types.BackendLedger && w.Constructor == "" {
		return errors.New("ledger workloads must name a constructor")
	}
	if _, err := ArgumentValues(w.ConstructorArgs, backend); err != nil {
		return errors.Wrap(err, "invalid constructor arguments")
	}
	if _, err := ArgumentValues(w.Args, backend); err != nil {
		return errors.Wrap(err, "invalid message arguments")
	}
	if w.Value != nil && backend == types.BackendLedger && !w.Value.FitsLedgerBalance() {
		return errors.Errorf("value %s exceeds the ledger balance range", w.Value)
	}
	if w.Value != nil {
		if _, err := w.Value.Uint256(); err != nil {
			return err
		}
	}
	return nil
}

// CallerName returns the dev account name that deploys and calls.
func (w *WorkloadConfig) CallerName() string {
	if w.Caller == "" {
		return "alice"
	}
	return w.Caller
}

func isDevAccount(name string, backend types.Backend) bool {
	if backend == types.BackendEVM && name == accounts.DefaultEVMAccountName {
		return true
	}
	for _, devName := range accounts.DevAccountNames {
		if name == devName {
			return true
		}
	}
	return false
}
