package ledger

import (
	"fmt"

	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/sandbox"
)

// DispatchError is the engine's structured description of why an operation could not complete, e.g.
// {Module: "Contracts", Reason: "ContractTrapped"}.
type DispatchError struct {
	Module string
	Reason string
}

// Dispatch error reasons reported by the engine.
const (
	ReasonContractTrapped              = "ContractTrapped"
	ReasonContractNotFound             = "ContractNotFound"
	ReasonDuplicateContract            = "DuplicateContract"
	ReasonCodeRejected                 = "CodeRejected"
	ReasonTransferFailed               = "TransferFailed"
	ReasonOutOfGas                     = "OutOfGas"
	ReasonOutputBufferTooSmall         = "OutputBufferTooSmall"
	ReasonDecodingFailed               = "DecodingFailed"
	ReasonStorageDepositLimitExhausted = "StorageDepositLimitExhausted"
	ReasonStorageDepositNotEnoughFunds = "StorageDepositNotEnoughFunds"
	ReasonValueTooLarge                = "ValueTooLarge"
	ReasonOutOfBounds                  = "OutOfBounds"
	ReasonInvalidCallFlags             = "InvalidCallFlags"
	ReasonTooManyTopics                = "TooManyTopics"
	ReasonExecutionTimeout             = "ExecutionTimeout"
)

// newContractsError returns a DispatchError raised by the contracts module.
func newContractsError(reason string) *DispatchError {
	return &DispatchError{Module: "Contracts", Reason: reason}
}

// Error returns the error message.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch error: %s::%s", e.Module, e.Reason)
}

// Kind returns Trapped for contract traps, out-of-gas aborts and timeouts, DispatchFailed otherwise.
func (e *DispatchError) Kind() sandbox.Kind {
	switch e.Reason {
	case ReasonContractTrapped, ReasonOutOfGas, ReasonExecutionTimeout:
		return sandbox.Trapped
	default:
		return sandbox.DispatchFailed
	}
}

// DeployError reports a failed instantiation. Dispatch is set if the engine rejected the operation, otherwise the
// constructor reverted with Data.
type DeployError struct {
	Dispatch *DispatchError
	Data     []byte
}

// Error returns the error message.
func (e *DeployError) Error() string {
	if e.Dispatch != nil {
		return "deployment failed: " + e.Dispatch.Error()
	}
	return fmt.Sprintf("deployment failed: constructor reverted with data 0x%x", e.Data)
}

// Unwrap returns the dispatch error, if any.
func (e *DeployError) Unwrap() error {
	if e.Dispatch == nil {
		return nil
	}
	return e.Dispatch
}

// Kind returns DeploymentFailed.
func (e *DeployError) Kind() sandbox.Kind {
	return sandbox.DeploymentFailed
}

// CallErrorReason distinguishes calls that could not be dispatched from calls whose contract logic failed.
type CallErrorReason int

const (
	// CallDispatch indicates the call could not be dispatched or the contract trapped.
	CallDispatch CallErrorReason = iota
	// CallReverted indicates the call was dispatched and the contract set the revert flag.
	CallReverted
)

// CallError reports a failed call.
type CallError struct {
	Reason CallErrorReason

	// Dispatch is the engine error for CallDispatch.
	Dispatch *DispatchError

	// Data is the revert payload for CallReverted.
	Data []byte
}

// Error returns the error message.
func (e *CallError) Error() string {
	if e.Reason == CallReverted {
		return fmt.Sprintf("call reverted with data 0x%x", e.Data)
	}
	return "call failed: " + e.Dispatch.Error()
}

// Unwrap returns the dispatch error, if any.
func (e *CallError) Unwrap() error {
	if e.Dispatch == nil {
		return nil
	}
	return e.Dispatch
}

// Kind returns Reverted for reverts, otherwise the dispatch error's kind.
func (e *CallError) Kind() sandbox.Kind {
	if e.Reason == CallReverted {
		return sandbox.Reverted
	}
	return e.Dispatch.Kind()
}

// FundingError reports that minting into an account failed.
type FundingError struct {
	Account accounts.AccountID
	Err     error
}

// Error returns the error message.
func (e *FundingError) Error() string {
	return fmt.Sprintf("could not fund account %s: %v", e.Account, e.Err)
}

// Unwrap returns the underlying error.
func (e *FundingError) Unwrap() error {
	return e.Err
}

// Kind returns DispatchFailed.
func (e *FundingError) Kind() sandbox.Kind {
	return sandbox.DispatchFailed
}
