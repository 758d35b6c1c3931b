package evm

import (
	"math/big"
	"testing"

	"github.com/crytic/medusa-geth/common"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/schlau/sandbox/sandboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func panicData(t *testing.T, code int64) []byte {
	packed, err := panicMethod.Inputs.Pack(big.NewInt(code))
	require.NoError(t, err)
	return append(append([]byte{}, panicMethod.ID...), packed...)
}

// TestRevertReason checks decoding of the standard revert payloads.
func TestRevertReason(t *testing.T) {
	contractAbi := sandboxtest.EVMComputationInterface(t).ABI()

	assert.Equal(t, "nope", RevertReason(nil, vm.ErrExecutionReverted, sandboxtest.RevertData(t, "nope")))
	assert.Equal(t, "panic: division by zero", RevertReason(nil, vm.ErrExecutionReverted, panicData(t, PanicCodeDivideByZero)))
	assert.Equal(t, "unknown panic code(153)", RevertReason(nil, vm.ErrExecutionReverted, panicData(t, 0x99)))

	unauthorized := contractAbi.Errors["Unauthorized"]
	packed, err := unauthorized.Inputs.Pack(big.NewInt(3))
	require.NoError(t, err)
	custom := append(append([]byte{}, unauthorized.ID.Bytes()[:4]...), packed...)
	assert.Equal(t, "Unauthorized[3]", RevertReason(contractAbi, vm.ErrExecutionReverted, custom))
	assert.Empty(t, RevertReason(nil, vm.ErrExecutionReverted, custom))

	// Payloads only decode for reverts.
	assert.Empty(t, RevertReason(nil, vm.ErrOutOfGas, sandboxtest.RevertData(t, "nope")))
	assert.Nil(t, SolidityPanicCode(vm.ErrInvalidJump, panicData(t, PanicCodeAssertFailed)))
	assert.Empty(t, RevertReason(contractAbi, vm.ErrExecutionReverted, []byte{1, 2}))
}

// TestPanicCode checks the raw panic code accessor.
func TestPanicCode(t *testing.T) {
	code := SolidityPanicCode(vm.ErrExecutionReverted, panicData(t, PanicCodeArithmeticUnderOverflow))
	require.NotNil(t, code)
	assert.EqualValues(t, PanicCodeArithmeticUnderOverflow, code.Uint64())

	message := SolidityRevertString(vm.ErrExecutionReverted, panicData(t, PanicCodeAssertFailed))
	assert.Nil(t, message)
}

// TestUnpackEvent checks event resolution from topics.
func TestUnpackEvent(t *testing.T) {
	contractAbi := sandboxtest.EVMComputationInterface(t).ABI()
	stored := contractAbi.Events["Stored"]

	log := &gethTypes.Log{Topics: []common.Hash{stored.ID, common.BigToHash(big.NewInt(9))}}
	event, values := UnpackEvent(contractAbi, log)
	require.NotNil(t, event)
	assert.Equal(t, []any{big.NewInt(9)}, values)

	// A missing indexed topic does not match the declaration.
	event, _ = UnpackEvent(contractAbi, &gethTypes.Log{Topics: []common.Hash{stored.ID}})
	assert.Nil(t, event)

	event, _ = UnpackEvent(contractAbi, &gethTypes.Log{Topics: []common.Hash{{1}}})
	assert.Nil(t, event)
	event, _ = UnpackEvent(nil, log)
	assert.Nil(t, event)
}
