package evm

import (
	"encoding/json"
	"fmt"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/schlau/sandbox"
	"github.com/pkg/errors"
)

// ExitKind is how a create or call terminated.
type ExitKind int

const (
	// ExitSucceed indicates the operation completed normally.
	ExitSucceed ExitKind = iota
	// ExitRevert indicates the contract executed REVERT.
	ExitRevert
	// ExitError indicates the EVM aborted execution, e.g. out of gas, an invalid opcode or a stack error.
	ExitError
	// ExitFatal indicates the message failed validation and was never executed, e.g. a nonce mismatch or
	// insufficient funds for gas.
	ExitFatal
)

// String returns the name of the exit kind.
func (k ExitKind) String() string {
	switch k {
	case ExitSucceed:
		return "succeed"
	case ExitRevert:
		return "revert"
	case ExitError:
		return "error"
	case ExitFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ExitReason classifies the termination of a create or call.
type ExitReason struct {
	Kind ExitKind

	// Err is the engine error for any kind other than ExitSucceed.
	Err error
}

// Succeeded reports whether the exit reason is a success.
func (r ExitReason) Succeeded() bool {
	return r.Kind == ExitSucceed
}

// String returns the exit kind, followed by the engine error if there is one.
func (r ExitReason) String() string {
	if r.Err == nil {
		return r.Kind.String()
	}
	return r.Kind.String() + ": " + r.Err.Error()
}

// exitReason classifies the outcome of core.ApplyMessage.
func exitReason(result *core.ExecutionResult, err error) ExitReason {
	switch {
	case err != nil:
		return ExitReason{Kind: ExitFatal, Err: err}
	case result.Err == nil:
		return ExitReason{Kind: ExitSucceed}
	case errors.Is(result.Err, vm.ErrExecutionReverted):
		return ExitReason{Kind: ExitRevert, Err: result.Err}
	default:
		return ExitReason{Kind: ExitError, Err: result.Err}
	}
}

// kind maps an exit reason onto the shared error taxonomy.
func (r ExitReason) kind() sandbox.Kind {
	switch r.Kind {
	case ExitSucceed:
		return sandbox.Success
	case ExitRevert:
		return sandbox.Reverted
	case ExitError:
		return sandbox.Trapped
	default:
		return sandbox.DispatchFailed
	}
}

// Failure describes an unsuccessful create or call.
type Failure struct {
	// Exit is the engine's exit reason.
	Exit ExitReason

	// ReturnData is the output of the failed execution, e.g. ABI-encoded revert data.
	ReturnData []byte

	// GasUsed is the gas consumed, zero if the message was never executed.
	GasUsed uint64

	// RevertReason is the decoded revert reason, if the return data could be decoded.
	RevertReason string
}

// diagnostics is the JSON rendering of a Failure.
type diagnostics struct {
	Operation    string        `json:"operation"`
	ExitReason   string        `json:"exitReason"`
	Error        string        `json:"error,omitempty"`
	RevertReason string        `json:"revertReason,omitempty"`
	GasUsed      uint64        `json:"gasUsed"`
	ReturnData   hexutil.Bytes `json:"returnData"`
}

func (f *Failure) diagnostics(operation string) string {
	d := diagnostics{
		Operation:    operation,
		ExitReason:   f.Exit.Kind.String(),
		RevertReason: f.RevertReason,
		GasUsed:      f.GasUsed,
		ReturnData:   f.ReturnData,
	}
	if f.Exit.Err != nil {
		d.Error = f.Exit.Err.Error()
	}
	encoded, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%+v", d)
	}
	return string(encoded)
}

func (f *Failure) describe() string {
	if f.RevertReason != "" {
		return f.Exit.String() + " (" + f.RevertReason + ")"
	}
	return f.Exit.String()
}

// CreateError reports a deployment whose exit reason was not a success.
type CreateError struct {
	Failure
}

// Error returns the error message.
func (e *CreateError) Error() string {
	return "contract creation failed: " + e.describe()
}

// Unwrap returns the engine error.
func (e *CreateError) Unwrap() error {
	return e.Exit.Err
}

// Kind returns DeploymentFailed.
func (e *CreateError) Kind() sandbox.Kind {
	return sandbox.DeploymentFailed
}

// Diagnostics returns the failure serialized as JSON.
func (e *CreateError) Diagnostics() string {
	return e.diagnostics("create")
}

// CallError reports a call whose exit reason was not a success.
type CallError struct {
	Failure
}

// Error returns the error message.
func (e *CallError) Error() string {
	return "call failed: " + e.describe()
}

// Unwrap returns the engine error.
func (e *CallError) Unwrap() error {
	return e.Exit.Err
}

// Kind returns Reverted for a revert, Trapped for an EVM error and DispatchFailed for a message that was never
// executed.
func (e *CallError) Kind() sandbox.Kind {
	return e.Exit.kind()
}

// Diagnostics returns the failure serialized as JSON.
func (e *CallError) Diagnostics() string {
	return e.diagnostics("call")
}

// FundingError reports a failed mint into an account.
type FundingError struct {
	Account common.Address
	Err     error
}

// Error returns the error message.
func (e *FundingError) Error() string {
	return fmt.Sprintf("could not fund account %s: %v", e.Account.Hex(), e.Err)
}

// Unwrap returns the underlying error.
func (e *FundingError) Unwrap() error {
	return e.Err
}

// Kind returns DispatchFailed.
func (e *FundingError) Kind() sandbox.Kind {
	return sandbox.DispatchFailed
}
