package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// EVMInterface is the function-signature table of an EVM contract, backed by its parsed ABI.
type EVMInterface struct {
	abi abi.ABI
}

// NewEVMInterface wraps an already parsed ABI.
func NewEVMInterface(contractAbi abi.ABI) *EVMInterface {
	return &EVMInterface{abi: contractAbi}
}

// ParseEVMInterface parses a JSON ABI definition. The definition may also be given as a JSON string containing the
// ABI, as older solc versions emit in combined-json output.
func ParseEVMInterface(data []byte) (*EVMInterface, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, errors.Wrap(ErrMalformedInterface, err.Error())
		}
		data = []byte(inner)
	}
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedInterface, err.Error())
	}
	return &EVMInterface{abi: parsed}, nil
}

// ABI returns the underlying ABI definition.
func (e *EVMInterface) ABI() *abi.ABI {
	return &e.abi
}

// Function resolves a function by exact name, or by full signature such as "remainders(uint256,uint256)". A name
// shared by several overloads is rejected with ErrAmbiguousFunction; the caller must then pass the signature.
func (e *EVMInterface) Function(nameOrSignature string) (*abi.Method, error) {
	if strings.Contains(nameOrSignature, "(") {
		for _, method := range e.abi.Methods {
			if method.Sig == nameOrSignature {
				m := method
				return &m, nil
			}
		}
		return nil, errors.Wrapf(ErrFunctionNotFound, "no function with signature '%s'", nameOrSignature)
	}

	var matches []abi.Method
	for _, method := range e.abi.Methods {
		if method.RawName == nameOrSignature {
			matches = append(matches, method)
		}
	}
	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(ErrFunctionNotFound, "no function named '%s'", nameOrSignature)
	case 1:
		return &matches[0], nil
	default:
		sigs := make([]string, len(matches))
		for i, m := range matches {
			sigs[i] = m.Sig
		}
		slices.Sort(sigs)
		return nil, errors.Wrapf(ErrAmbiguousFunction, "'%s' matches %s", nameOrSignature, strings.Join(sigs, ", "))
	}
}

// Constructor returns the constructor definition. Contracts without an explicit constructor get an empty one.
func (e *EVMInterface) Constructor() abi.Method {
	return e.abi.Constructor
}

// Signatures returns the sorted signatures of all functions.
func (e *EVMInterface) Signatures() []string {
	sigs := make([]string, 0, len(e.abi.Methods))
	for _, method := range e.abi.Methods {
		sigs = append(sigs, method.Sig)
	}
	slices.Sort(sigs)
	return sigs
}
