package evm

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/sandbox/sandboxtest"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deployComputation creates a sandbox and deploys the test contract from alice.
func deployComputation(t *testing.T, config Config) (*Sandbox, common.Address, common.Address) {
	s, err := NewSandbox(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	alice := s.Accounts().MustGet("alice")
	contract, err := s.DeployContract(NewCreateArgs(sandboxtest.EVMInitCode(sandboxtest.EVMComputationRuntime(t)), alice), sandboxtest.EVMComputationInterface(t).ABI())
	require.NoError(t, err)
	return s, alice, contract
}

// expectedAddress is the address of the next contract deployed by deployer.
func expectedAddress(s *Sandbox, deployer common.Address) common.Address {
	return crypto.CreateAddress(deployer, s.Nonce(deployer))
}

// TestComputation checks the return values of the computation functions for large inputs.
func TestComputation(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	triangleNumber, err := NewFunction1[int64](iface, "triangle_number")
	require.NoError(t, err)
	args, err := FromMethodCall(alice, triangleNumber.Call(contract, 3_000_000))
	require.NoError(t, err)
	output, err := s.Call(args)
	require.NoError(t, err)
	values, err := UnpackOutput(iface, "triangle_number", output)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.EqualValues(t, int64(4_500_001_500_000), values[0])

	oddProduct, err := NewFunction1[int32](iface, "odd_product")
	require.NoError(t, err)
	args, err = FromMethodCall(alice, oddProduct.Call(contract, 2_000_000))
	require.NoError(t, err)
	output, err = s.Call(args)
	require.NoError(t, err)
	values, err = UnpackOutput(iface, "odd_product", output)
	require.NoError(t, err)
	assert.EqualValues(t, int64(-1_335_316_246_127_320_831), values[0])
}

// TestRemainders checks the 256-bit output words against the canonical big-endian values.
func TestRemainders(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	remainders, err := NewFunction2[*big.Int, *big.Int](iface, "remainders")
	require.NoError(t, err)
	args, err := FromMethodCall(alice, remainders.Call(contract, big.NewInt(1), big.NewInt(2)))
	require.NoError(t, err)
	output, err := s.Call(args)
	require.NoError(t, err)

	words, err := sandbox.CanonicalU256Words(output, sandbox.BigEndian)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, sandboxtest.RemainderA, hex.EncodeToString(words[0][:]))
	assert.Equal(t, sandboxtest.RemainderB, hex.EncodeToString(words[1][:]))

	// The words depend on the arguments.
	args, err = FromMethodCall(alice, remainders.Call(contract, big.NewInt(2), big.NewInt(4)))
	require.NoError(t, err)
	output, err = s.Call(args)
	require.NoError(t, err)
	shifted, err := sandbox.DecodeU256Words(output, sandbox.BigEndian)
	require.NoError(t, err)
	require.Len(t, shifted, 2)
	assert.Equal(t, new(uint256.Int).AddUint64(new(uint256.Int).SetBytes32(words[0][:]), 1), shifted[0])
	assert.Equal(t, new(uint256.Int).AddUint64(new(uint256.Int).SetBytes32(words[1][:]), 2), shifted[1])
}

// TestCallInputEncodings checks that packing by name and through a typed function produce the same call.
func TestCallInputEncodings(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	byName, err := PackCall(iface, "triangle_number", int64(10))
	require.NoError(t, err)
	bySignature, err := PackCall(iface, "triangle_number(int64)", int64(10))
	require.NoError(t, err)
	assert.Equal(t, byName.Bytes(), bySignature.Bytes())
	method, err := iface.Function("triangle_number")
	require.NoError(t, err)
	assert.Equal(t, method.ID, byName.Selector())

	fn, err := NewFunction1[int64](iface, "triangle_number")
	require.NoError(t, err)
	typed, err := FromMethodCall(alice, fn.Call(contract, 10))
	require.NoError(t, err)
	assert.Equal(t, NewCallArgs(contract, alice, byName), typed)
	assert.Equal(t, contract, fn.Call(contract, 10).Callee())

	output, err := s.Call(typed)
	require.NoError(t, err)
	values, err := UnpackOutput(iface, "triangle_number", output)
	require.NoError(t, err)
	assert.EqualValues(t, int64(55), values[0])
}

// TestEncodingFailures checks lookup and packing errors classify as EncodingFailed.
func TestEncodingFailures(t *testing.T) {
	iface := sandboxtest.EVMComputationInterface(t)

	_, err := PackCall(iface, "store", big.NewInt(1))
	assert.True(t, errors.Is(err, types.ErrAmbiguousFunction))
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))

	_, err = PackCall(iface, "store(uint256)", big.NewInt(1))
	assert.NoError(t, err)

	_, err = PackCall(iface, "missing")
	assert.True(t, errors.Is(err, types.ErrFunctionNotFound))

	_, err = PackCall(iface, "triangle_number", "not a number")
	var encodingErr *sandbox.EncodingError
	require.True(t, errors.As(err, &encodingErr))
	assert.Equal(t, "triangle_number(int64)", encodingErr.Target)
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))

	_, err = NewFunction2[int64, int64](iface, "triangle_number")
	assert.True(t, errors.Is(err, types.ErrFunctionNotFound))

	_, err = FromMethodCall(common.Address{}, MethodCall{})
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))

	// A failed lookup leaves a function that cannot be called.
	missing, err := NewFunction1[int64](iface, "missing")
	require.Error(t, err)
	_, err = FromMethodCall(common.Address{}, missing.Call(common.Address{}, 1))
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))
}

// TestEmptyCalldata checks that a call whose input was not packed against an interface is never dispatched.
func TestEmptyCalldata(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	nonce := s.Nonce(alice)

	_, err := s.Call(NewCallArgs(contract, alice, Calldata{}))
	var encodingErr *sandbox.EncodingError
	require.True(t, errors.As(err, &encodingErr))
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))
	_, err = s.Call(CallArgs{Dest: contract, Source: alice})
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))
	assert.Equal(t, nonce, s.Nonce(alice))
}

// TestRepeatedCalls checks that calls without state changes return identical output.
func TestRepeatedCalls(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	input, err := PackCall(sandboxtest.EVMComputationInterface(t), "triangle_number", int64(1000))
	require.NoError(t, err)

	outputs, err := sandbox.CallRepeatedly[common.Address, CreateArgs, CallArgs](s, NewCallArgs(contract, alice, input), 5)
	require.NoError(t, err)
	require.Len(t, outputs, 5)
	for _, output := range outputs[1:] {
		assert.Equal(t, outputs[0], output)
	}
}

// TestRevertedCall checks that a revert is classified as Reverted and its reason decoded.
func TestRevertedCall(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	input, err := PackCall(iface, "fail")
	require.NoError(t, err)
	result, err := s.CallResult(NewCallArgs(contract, alice, input))
	require.Error(t, err)
	assert.Equal(t, sandbox.Reverted, sandbox.Classify(err))
	assert.Equal(t, ExitRevert, result.Exit.Kind)
	assert.True(t, errors.Is(err, vm.ErrExecutionReverted))

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, "nope", callErr.RevertReason)
	assert.Equal(t, sandboxtest.RevertData(t, "nope"), callErr.ReturnData)
	assert.NotZero(t, callErr.GasUsed)

	input, err = PackCall(iface, "fail_custom")
	require.NoError(t, err)
	_, err = s.Call(NewCallArgs(contract, alice, input))
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, "Unauthorized[7]", callErr.RevertReason)

	// Selectors the contract does not dispatch fall through to a revert.
	input, err = PackCall(iface, "unimplemented")
	require.NoError(t, err)
	_, err = s.Call(NewCallArgs(contract, alice, input))
	assert.Equal(t, sandbox.Reverted, sandbox.Classify(err))
}

// TestTrappedCall checks that EVM errors are classified as Trapped.
func TestTrappedCall(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	input, err := PackCall(iface, "invalid")
	require.NoError(t, err)
	result, err := s.CallResult(NewCallArgs(contract, alice, input))
	assert.Equal(t, sandbox.Trapped, sandbox.Classify(err))
	assert.Equal(t, ExitError, result.Exit.Kind)

	input, err = PackCall(iface, "triangle_number", int64(3_000_000))
	require.NoError(t, err)
	_, err = s.Call(NewCallArgs(contract, alice, input).WithGasLimit(100_000))
	assert.Equal(t, sandbox.Trapped, sandbox.Classify(err))
	assert.True(t, errors.Is(err, vm.ErrOutOfGas))
}

// TestDispatchFailures checks that messages rejected before execution are classified as DispatchFailed and leave
// the state untouched.
func TestDispatchFailures(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	input, err := PackCall(sandboxtest.EVMComputationInterface(t), "load")
	require.NoError(t, err)

	nonce := s.Nonce(alice)
	result, err := s.CallResult(NewCallArgs(contract, alice, input).WithNonce(nonce + 5))
	assert.Equal(t, sandbox.DispatchFailed, sandbox.Classify(err))
	assert.Equal(t, ExitFatal, result.Exit.Kind)
	assert.True(t, errors.Is(err, core.ErrNonceTooHigh))
	assert.Equal(t, nonce, s.Nonce(alice))

	pauper := accounts.EVMDevAccount("pauper").ID
	_, err = s.Call(NewCallArgs(contract, pauper, input))
	assert.Equal(t, sandbox.DispatchFailed, sandbox.Classify(err))
	assert.True(t, errors.Is(err, core.ErrInsufficientFunds))

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	var diagnostics map[string]any
	require.NoError(t, json.Unmarshal([]byte(callErr.Diagnostics()), &diagnostics))
	assert.Equal(t, "call", diagnostics["operation"])
	assert.Equal(t, "fatal", diagnostics["exitReason"])
	assert.Contains(t, diagnostics["error"], "insufficient funds")
}

// TestStorageAndEvents checks that state persists across calls and emitted events decode against the ABI.
func TestStorageAndEvents(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	iface := sandboxtest.EVMComputationInterface(t)

	store, err := NewFunction1[*big.Int](iface, "store(uint256)")
	require.NoError(t, err)
	args, err := FromMethodCall(alice, store.Call(contract, big.NewInt(42)))
	require.NoError(t, err)
	result, err := s.CallResult(args)
	require.NoError(t, err)
	require.Len(t, result.Logs, 1)

	event, values := UnpackEvent(iface.ABI(), result.Logs[0])
	require.NotNil(t, event)
	assert.Equal(t, "Stored", event.Name)
	assert.Equal(t, big.NewInt(42), values[0])

	load, err := NewFunction0(iface, "load")
	require.NoError(t, err)
	args, err = FromMethodCall(alice, load.Call(contract))
	require.NoError(t, err)
	output, err := s.Call(args)
	require.NoError(t, err)
	words, err := sandbox.DecodeU256Words(output, sandbox.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), words[0])
}

// TestDeployment checks contract addresses, deployed code and deployment failures.
func TestDeployment(t *testing.T) {
	s, err := NewSandbox(Config{})
	require.NoError(t, err)
	defer s.Close()
	bob := s.Accounts().MustGet("bob")
	runtime := sandboxtest.EVMComputationRuntime(t)

	expected := expectedAddress(s, bob)
	contract, err := s.Deploy(NewCreateArgs(sandboxtest.EVMInitCode(runtime), bob))
	require.NoError(t, err)
	assert.Equal(t, expected, contract)
	assert.Equal(t, runtime, s.Code(contract))

	// Nonces advance, so the same code deploys to a new address.
	again, err := s.Deploy(NewCreateArgs(sandboxtest.EVMInitCode(runtime), bob))
	require.NoError(t, err)
	assert.NotEqual(t, contract, again)

	result, err := s.CreateResult(NewCreateArgs(sandboxtest.EVMRevertingInitCode(t), bob))
	assert.Equal(t, sandbox.DeploymentFailed, sandbox.Classify(err))
	assert.Equal(t, ExitRevert, result.Exit.Kind)
	var createErr *CreateError
	require.True(t, errors.As(err, &createErr))
	assert.Equal(t, "constructor", createErr.RevertReason)
	assert.Contains(t, createErr.Diagnostics(), `"operation":"create"`)

	_, err = s.Create(NewCreateArgs(sandboxtest.EVMInitCode(runtime), bob).WithGasLimit(30_000))
	assert.Equal(t, sandbox.DeploymentFailed, sandbox.Classify(err))

	_, err = s.Create(NewCreateArgs(sandboxtest.EVMInitCode(runtime), bob).WithNonce(0))
	assert.Equal(t, sandbox.DeploymentFailed, sandbox.Classify(err))
	assert.True(t, errors.Is(err, core.ErrNonceTooLow))
}

// TestConstructorArguments checks that encoded constructor arguments are appended to the init code.
func TestConstructorArguments(t *testing.T) {
	iface, err := types.ParseEVMInterface([]byte(`[{"type": "constructor", "inputs": [{"name": "x", "type": "uint256"}]}]`))
	require.NoError(t, err)

	input, err := PackConstructor(iface, big.NewInt(5))
	require.NoError(t, err)
	args := NewCreateArgs([]byte{0x00}, accounts.DefaultEVMAccount).WithData(input)
	assert.Len(t, args.input(), 1+32)
	assert.Equal(t, byte(5), args.input()[32])

	_, err = PackConstructor(iface, "five")
	assert.Equal(t, sandbox.EncodingFailed, sandbox.Classify(err))
}

// TestFunding checks genesis balances and minting.
func TestFunding(t *testing.T) {
	s, err := NewSandbox(Config{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DefaultAccountBalance, s.FreeBalance(accounts.DefaultEVMAccount))
	for _, account := range s.Accounts().All() {
		assert.True(t, s.FreeBalance(account.ID).Cmp(uint256.NewInt(accounts.FundingAmount)) >= 0, account.Name)
	}

	charlie := s.Accounts().MustGet("charlie")
	before := s.FreeBalance(charlie)
	balance, err := s.MintInto(charlie, uint256.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Add(before, uint256.NewInt(7)), balance)
	assert.Equal(t, balance, s.FreeBalance(charlie))

	_, err = s.MintInto(accounts.DefaultEVMAccount, new(uint256.Int).SetAllOne())
	var fundingErr *FundingError
	require.True(t, errors.As(err, &fundingErr))
	assert.Equal(t, accounts.DefaultEVMAccount, fundingErr.Account)
	assert.Equal(t, sandbox.DispatchFailed, sandbox.Classify(err))
	assert.Equal(t, DefaultAccountBalance, s.FreeBalance(accounts.DefaultEVMAccount))
}

// TestValueTransfer checks that value moves from the caller to the contract.
func TestValueTransfer(t *testing.T) {
	s, alice, contract := deployComputation(t, Config{})
	input, err := PackCall(sandboxtest.EVMComputationInterface(t), "load")
	require.NoError(t, err)

	_, err = s.Call(NewCallArgs(contract, alice, input).WithValue(uint256.NewInt(1000)))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1000), s.FreeBalance(contract))
}

// TestCustomAccounts checks a sandbox funded with an explicit account set and amount.
func TestCustomAccounts(t *testing.T) {
	set, err := accounts.NewSet(accounts.EVMDevAccount("solo"))
	require.NoError(t, err)
	amount := uint256.NewInt(accounts.FundingAmount)

	s, err := NewSandbox(Config{Accounts: set, FundingAmount: amount})
	require.NoError(t, err)
	defer s.Close()

	solo := s.Accounts().MustGet("solo")
	assert.Equal(t, amount, s.FreeBalance(solo))
	assert.Equal(t, DefaultAccountBalance, s.FreeBalance(accounts.DefaultEVMAccount))

	// The funding amount does not cover the default gas limit at the minimum gas price.
	_, err = s.Deploy(NewCreateArgs(sandboxtest.EVMInitCode(sandboxtest.EVMComputationRuntime(t)), solo))
	assert.True(t, errors.Is(err, core.ErrInsufficientFunds))

	_, err = s.Deploy(NewCreateArgs(sandboxtest.EVMInitCode(sandboxtest.EVMComputationRuntime(t)), solo).WithGasLimit(500_000))
	assert.NoError(t, err)
}

// TestExitReason checks the classification of engine outcomes.
func TestExitReason(t *testing.T) {
	tests := []struct {
		result   *core.ExecutionResult
		err      error
		expected ExitKind
		kind     sandbox.Kind
	}{
		{result: &core.ExecutionResult{}, expected: ExitSucceed, kind: sandbox.Success},
		{result: &core.ExecutionResult{Err: vm.ErrExecutionReverted}, expected: ExitRevert, kind: sandbox.Reverted},
		{result: &core.ExecutionResult{Err: vm.ErrOutOfGas}, expected: ExitError, kind: sandbox.Trapped},
		{result: &core.ExecutionResult{Err: &vm.ErrStackUnderflow{}}, expected: ExitError, kind: sandbox.Trapped},
		{err: core.ErrNonceTooLow, expected: ExitFatal, kind: sandbox.DispatchFailed},
	}
	for _, test := range tests {
		exit := exitReason(test.result, test.err)
		assert.Equal(t, test.expected, exit.Kind)
		assert.Equal(t, test.kind, exit.kind())
	}
	assert.Equal(t, "revert: execution reverted", ExitReason{Kind: ExitRevert, Err: vm.ErrExecutionReverted}.String())
}
