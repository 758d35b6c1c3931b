package types

import "github.com/pkg/errors"

// Backend identifies the execution runtime a build artifact targets.
type Backend string

const (
	// BackendLedger is the selector-dispatched Wasm contracts runtime, using SCALE encoding and weight metering.
	BackendLedger Backend = "ledger"

	// BackendEVM is the Ethereum virtual machine, using ABI encoding and gas metering.
	BackendEVM Backend = "evm"
)

// ParseBackend converts a string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendLedger, BackendEVM:
		return Backend(s), nil
	default:
		return "", errors.Errorf("unknown backend '%s', expected '%s' or '%s'", s, BackendLedger, BackendEVM)
	}
}
