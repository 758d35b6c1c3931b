package sandbox

// ContractSandbox is the capability shared by all backends: deploy code, then call the deployed handle. H is the
// backend's contract handle, C its create request and A its call request. Both backends return call output bytes.
//
// Implementations are not safe for concurrent use. Run one sandbox per worker.
type ContractSandbox[H any, C any, A any] interface {
	// Deploy creates a contract from the given request and returns its handle.
	Deploy(args C) (H, error)

	// Call executes a call request and returns the contract's output.
	Call(args A) ([]byte, error)
}

// DeployAndCall deploys a contract and performs one call built from the resulting handle.
func DeployAndCall[H any, C any, A any](s ContractSandbox[H, C, A], create C, buildCall func(H) A) ([]byte, error) {
	handle, err := s.Deploy(create)
	if err != nil {
		return nil, err
	}
	return s.Call(buildCall(handle))
}

// CallRepeatedly executes the same call request n times against a sandbox and returns every output. It stops at the
// first failure, returning the outputs collected so far.
func CallRepeatedly[H any, C any, A any](s ContractSandbox[H, C, A], args A, n int) ([][]byte, error) {
	outputs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		output, err := s.Call(args)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}
