package ledger

import (
	"context"
	"math/big"

	"github.com/crytic/schlau/accounts"
)

// Engine is the ledger execution engine: account balances, code storage, contract dispatch and metering. The sandbox
// drives it through these entry points only. Engines are not safe for concurrent use.
type Engine interface {
	// Instantiate uploads code and runs its constructor. A non-nil ExecResult.Err means the engine rejected the
	// operation. Otherwise the constructor ran and ExecResult.Return holds its flags and output.
	Instantiate(ctx context.Context, request InstantiateRequest) ExecResult

	// Call dispatches a message to a deployed contract, with the same result conventions as Instantiate.
	Call(ctx context.Context, request CallRequest) ExecResult

	// Mint adds amount to the free balance of account and returns the new balance.
	Mint(account accounts.AccountID, amount *big.Int) (*big.Int, error)

	// FreeBalance returns the free balance of account.
	FreeBalance(account accounts.AccountID) *big.Int

	// Close releases the engine's resources.
	Close(ctx context.Context) error
}

// InstantiateRequest is the engine-level form of CreateArgs with defaults applied.
type InstantiateRequest struct {
	Origin              accounts.AccountID
	Value               *big.Int
	GasLimit            Weight
	StorageDepositLimit *big.Int
	Code                []byte
	Data                []byte
	Salt                []byte
	Debug               bool
}

// CallRequest is the engine-level form of CallArgs with defaults applied.
type CallRequest struct {
	Origin              accounts.AccountID
	Dest                accounts.AccountID
	Value               *big.Int
	GasLimit            Weight
	StorageDepositLimit *big.Int
	Data                []byte
	Debug               bool
}

// Event is an event deposited by a contract.
type Event struct {
	Contract accounts.AccountID
	Topics   [][32]byte
	Data     []byte
}

// ExecResult is the outcome of an engine operation.
type ExecResult struct {
	// Err is set if the operation could not be dispatched or the contract trapped.
	Err *DispatchError

	// Return is the contract's flags and output. It is only meaningful when Err is nil.
	Return ExecReturn

	// Account is the address of the instantiated contract.
	Account accounts.AccountID

	// GasConsumed is the weight used by the operation.
	GasConsumed Weight

	// StorageDeposit is the net balance locked (positive) or released (negative) for storage.
	StorageDeposit *big.Int

	// DebugMessage is the contract's debug output. It is only collected when debug output was requested.
	DebugMessage []byte

	// Events are the events deposited by an operation that was not rolled back.
	Events []Event
}
