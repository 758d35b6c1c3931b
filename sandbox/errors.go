package sandbox

import (
	"github.com/crytic/schlau/compilation/types"
	"github.com/pkg/errors"
)

// Kind is the backend-independent classification of an execution outcome.
type Kind int

const (
	// Success indicates the operation completed and the contract did not signal failure.
	Success Kind = iota
	// Reverted indicates the contract was dispatched and explicitly signalled failure.
	Reverted
	// Trapped indicates the contract was dispatched and aborted abnormally (trap, invalid opcode, out of gas).
	Trapped
	// DeploymentFailed indicates the engine rejected a contract creation.
	DeploymentFailed
	// EncodingFailed indicates a request could not be built, e.g. an unknown selector or unencodable argument.
	EncodingFailed
	// DispatchFailed indicates the engine could not dispatch a call at all, e.g. an unknown contract or a failed
	// value transfer.
	DispatchFailed
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Reverted:
		return "reverted"
	case Trapped:
		return "trapped"
	case DeploymentFailed:
		return "deployment failed"
	case EncodingFailed:
		return "encoding failed"
	case DispatchFailed:
		return "dispatch failed"
	default:
		return "unknown"
	}
}

// ClassifiedError is implemented by every backend error type.
type ClassifiedError interface {
	error
	Kind() Kind
}

// Classify maps any error returned by a sandbox or builder to a Kind. A nil error is Success. Interface lookup errors
// from the build adapter are EncodingFailed. Errors of unknown shape are reported as DispatchFailed, never as a
// contract-level outcome.
func Classify(err error) Kind {
	if err == nil {
		return Success
	}

	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind()
	}

	for _, sentinel := range []error{
		types.ErrSelectorNotFound, types.ErrFunctionNotFound, types.ErrAmbiguousFunction,
		types.ErrMalformedInterface, types.ErrBackendMismatch,
	} {
		if errors.Is(err, sentinel) {
			return EncodingFailed
		}
	}
	return DispatchFailed
}

// EncodingError reports that arguments could not be encoded for the target backend.
type EncodingError struct {
	// Target names the message, constructor or function being encoded.
	Target string

	// Err is the encoder's error.
	Err error
}

// NewEncodingError wraps an encoder failure for target.
func NewEncodingError(target string, err error) *EncodingError {
	return &EncodingError{Target: target, Err: err}
}

// Error returns the error message.
func (e *EncodingError) Error() string {
	return "could not encode arguments for '" + e.Target + "': " + e.Err.Error()
}

// Unwrap returns the encoder's error.
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Kind returns EncodingFailed.
func (e *EncodingError) Kind() Kind {
	return EncodingFailed
}
