package types

import "github.com/pkg/errors"

// Build and interface errors. Callers match them with errors.Is, the returned errors carry the details.
var (
	// ErrBuildFailed indicates the external compiler exited with an error.
	ErrBuildFailed = errors.New("build failed")

	// ErrArtifactMissing indicates an expected compiler output file does not exist.
	ErrArtifactMissing = errors.New("build artifact missing")

	// ErrSelectorNotFound indicates no constructor or message with the requested name exists in a ledger interface.
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrFunctionNotFound indicates no EVM function matches the requested name or signature.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrAmbiguousFunction indicates several EVM overloads share the requested name, so a full signature is needed.
	ErrAmbiguousFunction = errors.New("ambiguous function name")

	// ErrMalformedInterface indicates an interface description does not have the expected shape.
	ErrMalformedInterface = errors.New("malformed interface description")

	// ErrBackendMismatch indicates an artifact for one backend was used where the other one was expected.
	ErrBackendMismatch = errors.New("artifact backend mismatch")
)
