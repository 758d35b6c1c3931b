package workload

import (
	"context"
	"time"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/config"
	"github.com/crytic/schlau/events"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/sandbox/evm"
	"github.com/crytic/schlau/sandbox/ledger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Runner executes workloads against a build artifact. Every workload gets a fresh sandbox, so workloads do not
// observe each other's state.
type Runner struct {
	artifact *types.BuildArtifact
	config   config.SandboxConfig
	logger   *logging.Logger

	// Events are published as workloads progress.
	Events RunnerEvents
}

// RunnerEvents are the emitters of a Runner.
type RunnerEvents struct {
	// ContractDeployed is published once per workload, after the deployment succeeded.
	ContractDeployed events.EventEmitter[ContractDeployedEvent]

	// CallCompleted is published after every successful call.
	CallCompleted events.EventEmitter[CallCompletedEvent]
}

// ContractDeployedEvent describes the deployment of a workload's contract.
type ContractDeployedEvent struct {
	Workload string
	Duration time.Duration
}

// CallCompletedEvent describes one timed call of a workload.
type CallCompletedEvent struct {
	Workload  string
	Iteration int
	Duration  time.Duration
	GasUsed   uint64
}

// NewRunner returns a Runner for artifact.
func NewRunner(artifact *types.BuildArtifact, sandboxConfig config.SandboxConfig, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Runner{artifact: artifact, config: sandboxConfig, logger: logger.NewSubLogger("module", "workload")}
}

// Run deploys the workload's contract and calls it the configured number of times. Cancelling ctx stops the calls
// and returns the measurement collected so far along with the context error.
func (r *Runner) Run(ctx context.Context, workload config.WorkloadConfig) (*Measurement, error) {
	if workload.Contract != "" && workload.Contract != r.artifact.ContractName {
		return nil, errors.Errorf("workload '%s' targets contract '%s', but the build produced '%s'",
			workload.Name, workload.Contract, r.artifact.ContractName)
	}
	if workload.Iterations <= 0 {
		return nil, errors.Errorf("workload '%s' must run at least one iteration", workload.Name)
	}
	r.logger.Info("Running workload ", colors.Bold, workload.Name, colors.Reset, " (", workload.Iterations, " iterations)")

	switch r.artifact.Backend {
	case types.BackendLedger:
		return r.runLedger(ctx, workload)
	case types.BackendEVM:
		return r.runEVM(ctx, workload)
	default:
		return nil, errors.Errorf("unknown backend '%s'", r.artifact.Backend)
	}
}

// meter records the deployment and calls of one workload in its measurement.
type meter struct {
	ctx    context.Context
	events *RunnerEvents
	m      *Measurement
}

// deploy times a deployment and publishes it.
func (mt *meter) deploy(deploy func() error) error {
	start := time.Now()
	err := deploy()
	mt.m.DeployDuration = time.Since(start)
	if err != nil {
		return errors.Wrap(err, "deployment failed")
	}
	mt.events.ContractDeployed.Publish(ContractDeployedEvent{Workload: mt.m.Name, Duration: mt.m.DeployDuration})
	return nil
}

// call times one call returning its output and the gas or weight it used. Once ctx is done no further calls are made.
func (mt *meter) call(call func() ([]byte, uint64, error)) ([]byte, error) {
	if err := mt.ctx.Err(); err != nil {
		return nil, err
	}
	iteration := mt.m.Iterations()
	start := time.Now()
	output, gas, err := call()
	elapsed := time.Since(start)
	if err != nil {
		return nil, errors.Wrapf(err, "call %d failed", iteration)
	}
	mt.m.Durations = append(mt.m.Durations, elapsed)
	mt.m.GasUsed = append(mt.m.GasUsed, gas)
	mt.m.Output = output
	mt.events.CallCompleted.Publish(CallCompletedEvent{Workload: mt.m.Name, Iteration: iteration, Duration: elapsed, GasUsed: gas})
	return output, nil
}

// ledgerTarget is a ledger sandbox whose operations are metered.
type ledgerTarget struct {
	s     *ledger.Sandbox
	meter *meter
}

var _ sandbox.ContractSandbox[accounts.AccountID, ledger.CreateArgs, ledger.CallArgs] = (*ledgerTarget)(nil)

func (t *ledgerTarget) Deploy(args ledger.CreateArgs) (accounts.AccountID, error) {
	var contract accounts.AccountID
	err := t.meter.deploy(func() (err error) {
		contract, err = t.s.Deploy(args)
		return err
	})
	return contract, err
}

func (t *ledgerTarget) Call(args ledger.CallArgs) ([]byte, error) {
	return t.meter.call(func() ([]byte, uint64, error) {
		result, err := t.s.CallResult(args)
		return result.Return.Data, result.GasConsumed.RefTime, err
	})
}

// evmTarget is an EVM sandbox whose operations are metered. Deployments register the contract ABI for revert
// reason decoding.
type evmTarget struct {
	s     *evm.Sandbox
	iface *types.EVMInterface
	meter *meter
}

var _ sandbox.ContractSandbox[common.Address, evm.CreateArgs, evm.CallArgs] = (*evmTarget)(nil)

func (t *evmTarget) Deploy(args evm.CreateArgs) (common.Address, error) {
	var contract common.Address
	err := t.meter.deploy(func() (err error) {
		contract, err = t.s.DeployContract(args, t.iface.ABI())
		return err
	})
	return contract, err
}

func (t *evmTarget) Call(args evm.CallArgs) ([]byte, error) {
	return t.meter.call(func() ([]byte, uint64, error) {
		result, err := t.s.CallResult(args)
		return result.ReturnData, result.GasUsed, err
	})
}

// drive deploys through target, then performs iterations identical calls built from the deployed handle.
func drive[H any, C any, A any](target sandbox.ContractSandbox[H, C, A], create C, buildCall func(H) A, iterations int) error {
	var args A
	_, err := sandbox.DeployAndCall(target, create, func(contract H) A {
		args = buildCall(contract)
		return args
	})
	if err != nil {
		return err
	}
	_, err = sandbox.CallRepeatedly(target, args, iterations-1)
	return err
}

func (r *Runner) newMeter(ctx context.Context, workload config.WorkloadConfig, backend types.Backend) *meter {
	return &meter{ctx: ctx, events: &r.Events, m: &Measurement{Name: workload.Name, Backend: backend}}
}

func (r *Runner) runLedger(ctx context.Context, workload config.WorkloadConfig) (*Measurement, error) {
	table, err := r.artifact.LedgerInterface()
	if err != nil {
		return nil, err
	}
	constructorArgs, err := config.ArgumentValues(workload.ConstructorArgs, types.BackendLedger)
	if err != nil {
		return nil, err
	}
	messageArgs, err := config.ArgumentValues(workload.Args, types.BackendLedger)
	if err != nil {
		return nil, err
	}
	constructorInput, err := ledger.ConstructorInput(table, workload.Constructor, constructorArgs...)
	if err != nil {
		return nil, err
	}
	messageInput, err := ledger.MessageInput(table, workload.Message, messageArgs...)
	if err != nil {
		return nil, err
	}

	sandboxConfig := ledger.Config{DebugOutput: r.config.DebugOutput, Logger: r.logger}
	if r.config.FundingAmount != nil {
		sandboxConfig.FundingAmount = r.config.FundingAmount.Int()
	}
	s, err := ledger.NewSandbox(sandboxConfig)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	caller, ok := s.Accounts().Get(workload.CallerName())
	if !ok {
		return nil, errors.Errorf("unknown caller '%s'", workload.CallerName())
	}

	create := ledger.NewCreateArgs(r.artifact.Code, caller).WithData(constructorInput)
	if workload.MaxGasLimit {
		create = create.WithMaxGasLimit()
	}
	buildCall := func(contract accounts.AccountID) ledger.CallArgs {
		args := ledger.NewCallArgs(contract, caller, messageInput)
		if workload.Value != nil {
			args = args.WithValue(workload.Value.Int())
		}
		if workload.MaxGasLimit {
			args = args.WithMaxGasLimit()
		}
		return args
	}

	mt := r.newMeter(ctx, workload, types.BackendLedger)
	target := &ledgerTarget{s: s, meter: mt}
	err = drive[accounts.AccountID, ledger.CreateArgs, ledger.CallArgs](target, create, buildCall, workload.Iterations)
	return mt.m, err
}

func (r *Runner) runEVM(ctx context.Context, workload config.WorkloadConfig) (*Measurement, error) {
	iface, err := r.artifact.EVMInterface()
	if err != nil {
		return nil, err
	}
	constructorArgs, err := config.ArgumentValues(workload.ConstructorArgs, types.BackendEVM)
	if err != nil {
		return nil, err
	}
	messageArgs, err := config.ArgumentValues(workload.Args, types.BackendEVM)
	if err != nil {
		return nil, err
	}
	constructorInput, err := evm.PackConstructor(iface, constructorArgs...)
	if err != nil {
		return nil, err
	}
	calldata, err := evm.PackCall(iface, workload.Message, messageArgs...)
	if err != nil {
		return nil, err
	}
	var value *uint256.Int
	if workload.Value != nil {
		if value, err = workload.Value.Uint256(); err != nil {
			return nil, err
		}
	}

	sandboxConfig := evm.Config{CodeSizeCheckDisabled: r.config.CodeSizeCheckDisabled, Logger: r.logger}
	if r.config.FundingAmount != nil {
		if sandboxConfig.FundingAmount, err = r.config.FundingAmount.Uint256(); err != nil {
			return nil, err
		}
	}
	s, err := evm.NewSandbox(sandboxConfig)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	caller, ok := s.Accounts().Get(workload.CallerName())
	if !ok {
		return nil, errors.Errorf("unknown caller '%s'", workload.CallerName())
	}

	create := evm.NewCreateArgs(r.artifact.Code, caller).WithData(constructorInput)
	if workload.MaxGasLimit {
		create = create.WithMaxGasLimit()
	}
	buildCall := func(contract common.Address) evm.CallArgs {
		args := evm.NewCallArgs(contract, caller, calldata)
		if value != nil {
			args = args.WithValue(value)
		}
		if workload.MaxGasLimit {
			args = args.WithMaxGasLimit()
		}
		return args
	}

	mt := r.newMeter(ctx, workload, types.BackendEVM)
	target := &evmTarget{s: s, iface: iface, meter: mt}
	err = drive[common.Address, evm.CreateArgs, evm.CallArgs](target, create, buildCall, workload.Iterations)
	return mt.m, err
}
