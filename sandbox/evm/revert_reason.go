package evm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/crytic/medusa-geth/accounts/abi"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/pkg/errors"
)

// Solidity `Panic(uint256)` codes.
// Reference: https://docs.soliditylang.org/en/latest/control-structures.html#panic-via-assert-and-error-via-require
const (
	PanicCodeCompilerInserted              = 0x00
	PanicCodeAssertFailed                  = 0x01
	PanicCodeArithmeticUnderOverflow       = 0x11
	PanicCodeDivideByZero                  = 0x12
	PanicCodeEnumTypeConversionOutOfBounds = 0x21
	PanicCodeIncorrectStorageAccess        = 0x22
	PanicCodePopEmptyArray                 = 0x31
	PanicCodeOutOfBoundsArrayAccess        = 0x32
	PanicCodeAllocateTooMuchMemory         = 0x41
	PanicCodeCallUninitializedVariable     = 0x51
)

var (
	uint256Type, _ = abi.NewType("uint256", "", nil)
	stringType, _  = abi.NewType("string", "", nil)

	panicMethod = abi.NewMethod("Panic", "Panic", abi.Function, "", false, false,
		abi.Arguments{{Type: uint256Type}}, abi.Arguments{})
	errorMethod = abi.NewMethod("Error", "Error", abi.Function, "", false, false,
		abi.Arguments{{Type: stringType}}, abi.Arguments{})
)

// SolidityPanicCode returns the code of a `Panic(uint256)` revert, or nil if the return data is not one.
func SolidityPanicCode(returnError error, returnData []byte) *big.Int {
	if !errors.Is(returnError, vm.ErrExecutionReverted) || len(returnData) != 4+32 {
		return nil
	}
	if !bytes.Equal(returnData[:4], panicMethod.ID) {
		return nil
	}
	values, err := panicMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	return values[0].(*big.Int)
}

// SolidityRevertString returns the message of an `Error(string)` revert, or nil if the return data is not one.
func SolidityRevertString(returnError error, returnData []byte) *string {
	if !errors.Is(returnError, vm.ErrExecutionReverted) || len(returnData) <= 4 {
		return nil
	}
	if !bytes.Equal(returnData[:4], errorMethod.ID) {
		return nil
	}
	values, err := errorMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	message := values[0].(string)
	return &message
}

// SolidityCustomError resolves a custom error revert against the contract ABI. It returns the error definition and
// its unpacked arguments, or nil for both.
func SolidityCustomError(contractAbi *abi.ABI, returnError error, returnData []byte) (*abi.Error, []any) {
	if contractAbi == nil || !errors.Is(returnError, vm.ErrExecutionReverted) || len(returnData) < 4 {
		return nil, nil
	}
	for _, abiError := range contractAbi.Errors {
		if !bytes.Equal(abiError.ID.Bytes()[:4], returnData[:4]) {
			continue
		}
		matched := abiError
		values, err := matched.Inputs.Unpack(returnData[4:])
		if err == nil {
			return &matched, values
		}
	}
	return nil, nil
}

// PanicReason describes a Solidity panic code.
func PanicReason(panicCode uint64) string {
	switch panicCode {
	case PanicCodeCompilerInserted:
		return "panic: compiler inserted panic"
	case PanicCodeAssertFailed:
		return "panic: assertion failed"
	case PanicCodeArithmeticUnderOverflow:
		return "panic: arithmetic underflow"
	case PanicCodeDivideByZero:
		return "panic: division by zero"
	case PanicCodeEnumTypeConversionOutOfBounds:
		return "panic: enum access out of bounds"
	case PanicCodeIncorrectStorageAccess:
		return "panic: incorrect storage access"
	case PanicCodePopEmptyArray:
		return "panic: pop on empty array"
	case PanicCodeOutOfBoundsArrayAccess:
		return "panic: out of bounds array access"
	case PanicCodeAllocateTooMuchMemory:
		return "panic: overallocation of memory"
	case PanicCodeCallUninitializedVariable:
		return "panic: call on uninitialized variable"
	default:
		return fmt.Sprintf("unknown panic code(%v)", panicCode)
	}
}

// RevertReason renders the reason of a revert for diagnostics, trying Error(string), Panic(uint256) and the custom
// errors of contractAbi in turn. It returns an empty string if none match.
func RevertReason(contractAbi *abi.ABI, returnError error, returnData []byte) string {
	if message := SolidityRevertString(returnError, returnData); message != nil {
		return *message
	}
	if code := SolidityPanicCode(returnError, returnData); code != nil {
		if !code.IsUint64() {
			return fmt.Sprintf("unknown panic code(%v)", code)
		}
		return PanicReason(code.Uint64())
	}
	if customError, values := SolidityCustomError(contractAbi, returnError, returnData); customError != nil {
		return fmt.Sprintf("%s%v", customError.Name, values)
	}
	return ""
}

// UnpackEvent finds the event definition of a log in the contract ABI and unpacks its values in declaration order,
// reading indexed values from the topics. It returns nil for both if the log cannot be resolved.
func UnpackEvent(contractAbi *abi.ABI, log *gethTypes.Log) (*abi.Event, []any) {
	if contractAbi == nil || len(log.Topics) == 0 {
		return nil, nil
	}
	event, err := contractAbi.EventByID(log.Topics[0])
	if err != nil {
		return nil, nil
	}

	// The ABI library does not unpack indexed arguments, so they are re-declared as non-indexed and unpacked from
	// the concatenated topics.
	var unindexed, indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, abi.Argument{Name: arg.Name, Type: arg.Type})
		} else {
			unindexed = append(unindexed, arg)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, nil
	}
	var topicData []byte
	for _, topic := range log.Topics[1:] {
		topicData = append(topicData, topic.Bytes()...)
	}

	unindexedValues, err := unindexed.Unpack(log.Data)
	if err != nil {
		return nil, nil
	}
	indexedValues, err := indexed.Unpack(topicData)
	if err != nil {
		return nil, nil
	}

	values := make([]any, 0, len(event.Inputs))
	var nextIndexed, nextUnindexed int
	for _, arg := range event.Inputs {
		if arg.Indexed {
			values = append(values, indexedValues[nextIndexed])
			nextIndexed++
		} else {
			values = append(values, unindexedValues[nextUnindexed])
			nextUnindexed++
		}
	}
	return event, values
}
