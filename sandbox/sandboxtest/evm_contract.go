package sandboxtest

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/schlau/compilation/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// EVMComputationABI describes the EVM computation contract. The unimplemented function is not dispatched by the
// contract.
const EVMComputationABI = `[
  {"type": "constructor", "inputs": [], "stateMutability": "nonpayable"},
  {"type": "function", "name": "triangle_number", "inputs": [{"name": "n", "type": "int64"}], "outputs": [{"name": "", "type": "int64"}], "stateMutability": "pure"},
  {"type": "function", "name": "odd_product", "inputs": [{"name": "n", "type": "int32"}], "outputs": [{"name": "", "type": "int64"}], "stateMutability": "pure"},
  {"type": "function", "name": "remainders", "inputs": [{"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}], "outputs": [{"name": "", "type": "uint256"}, {"name": "", "type": "uint256"}], "stateMutability": "pure"},
  {"type": "function", "name": "fail", "inputs": [], "outputs": [], "stateMutability": "pure"},
  {"type": "function", "name": "fail_custom", "inputs": [], "outputs": [], "stateMutability": "pure"},
  {"type": "function", "name": "invalid", "inputs": [], "outputs": [], "stateMutability": "pure"},
  {"type": "function", "name": "unimplemented", "inputs": [], "outputs": [], "stateMutability": "pure"},
  {"type": "function", "name": "store", "inputs": [{"name": "v", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
  {"type": "function", "name": "store", "inputs": [{"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}], "outputs": [], "stateMutability": "nonpayable"},
  {"type": "function", "name": "load", "inputs": [], "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view"},
  {"type": "event", "name": "Stored", "inputs": [{"name": "v", "type": "uint256", "indexed": true}], "anonymous": false},
  {"type": "error", "name": "Unauthorized", "inputs": [{"name": "code", "type": "uint256"}]}
]`

// EVMComputationInterface parses EVMComputationABI.
func EVMComputationInterface(t *testing.T) *types.EVMInterface {
	iface, err := types.ParseEVMInterface([]byte(EVMComputationABI))
	require.NoError(t, err)
	return iface
}

// assembler builds EVM bytecode with forward references to labels.
type assembler struct {
	code   []byte
	labels map[string]int
	fixups map[int]string
}

func newAssembler() *assembler {
	return &assembler{labels: make(map[string]int), fixups: make(map[int]string)}
}

func (a *assembler) op(ops ...vm.OpCode) *assembler {
	for _, op := range ops {
		a.code = append(a.code, byte(op))
	}
	return a
}

// push emits the shortest PUSH of value.
func (a *assembler) push(value []byte) *assembler {
	if len(value) == 0 {
		return a.op(vm.PUSH0)
	}
	a.code = append(a.code, byte(vm.PUSH1)+byte(len(value)-1))
	a.code = append(a.code, value...)
	return a
}

func (a *assembler) pushInt(value uint64) *assembler {
	return a.push(new(big.Int).SetUint64(value).Bytes())
}

// pushLabel emits a PUSH2 of a label's offset, resolved by bytes.
func (a *assembler) pushLabel(name string) *assembler {
	a.code = append(a.code, byte(vm.PUSH2))
	a.fixups[len(a.code)] = name
	a.code = append(a.code, 0, 0)
	return a
}

// label marks a jump destination.
func (a *assembler) label(name string) *assembler {
	a.labels[name] = len(a.code)
	return a.op(vm.JUMPDEST)
}

// data appends raw bytes under a label.
func (a *assembler) data(name string, b []byte) *assembler {
	a.labels[name] = len(a.code)
	a.code = append(a.code, b...)
	return a
}

// jumpIfSelector jumps to a label if the selector on top of the stack matches.
func (a *assembler) jumpIfSelector(selector []byte, target string) *assembler {
	return a.op(vm.DUP1).push(selector).op(vm.EQ).pushLabel(target).op(vm.JUMPI)
}

// returnWord returns the word on top of the stack.
func (a *assembler) returnWord() *assembler {
	return a.op(vm.PUSH0, vm.MSTORE).pushInt(32).op(vm.PUSH0, vm.RETURN)
}

// decrement replaces the counter below the top of the stack with counter-1.
func (a *assembler) decrement() *assembler {
	return a.op(vm.SWAP1).pushInt(1).op(vm.SWAP1, vm.SUB, vm.SWAP1)
}

// addToArgument stores base plus the calldata word at argOffset to memory at memOffset.
func (a *assembler) addToArgument(base *uint256.Int, argOffset uint64, memOffset uint64) *assembler {
	word := base.Bytes32()
	return a.push(word[:]).pushInt(argOffset).op(vm.CALLDATALOAD, vm.ADD).pushInt(memOffset).op(vm.MSTORE)
}

func (a *assembler) bytes() []byte {
	code := append([]byte{}, a.code...)
	for offset, name := range a.fixups {
		target, ok := a.labels[name]
		if !ok {
			panic("undefined label " + name)
		}
		binary.BigEndian.PutUint16(code[offset:], uint16(target))
	}
	return code
}

var errorMethod = func() abi.Method {
	stringType, _ := abi.NewType("string", "", nil)
	return abi.NewMethod("Error", "Error", abi.Function, "", false, false, abi.Arguments{{Type: stringType}}, abi.Arguments{})
}()

// RevertData returns the data of a revert with the Error(string) payload.
func RevertData(t *testing.T, message string) []byte {
	packed, err := errorMethod.Inputs.Pack(message)
	require.NoError(t, err)
	return append(append([]byte{}, errorMethod.ID...), packed...)
}

// EVMComputationRuntime assembles the runtime code of the EVM computation contract.
func EVMComputationRuntime(t *testing.T) []byte {
	iface := EVMComputationInterface(t)
	selector := func(signature string) []byte {
		method, err := iface.Function(signature)
		require.NoError(t, err)
		return method.ID
	}
	failData := RevertData(t, "nope")
	customError := iface.ABI().Errors["Unauthorized"]
	customData, err := customError.Inputs.Pack(big.NewInt(7))
	require.NoError(t, err)
	customData = append(append([]byte{}, customError.ID.Bytes()[:4]...), customData...)
	stored := iface.ABI().Events["Stored"].ID

	a := newAssembler()
	a.op(vm.PUSH0, vm.CALLDATALOAD).pushInt(0xe0).op(vm.SHR)
	a.jumpIfSelector(selector("triangle_number"), "triangle")
	a.jumpIfSelector(selector("odd_product"), "odd")
	a.jumpIfSelector(selector("remainders"), "remainders")
	a.jumpIfSelector(selector("fail"), "fail")
	a.jumpIfSelector(selector("fail_custom"), "fail_custom")
	a.jumpIfSelector(selector("invalid"), "invalid")
	a.jumpIfSelector(selector("store(uint256)"), "store")
	a.jumpIfSelector(selector("load"), "load")
	a.op(vm.PUSH0, vm.PUSH0, vm.REVERT)

	// Stack layout in both loops: [n, acc] with acc on top.
	a.label("triangle").op(vm.POP).pushInt(4).op(vm.CALLDATALOAD, vm.PUSH0)
	a.label("triangle_loop").op(vm.DUP2, vm.ISZERO).pushLabel("triangle_done").op(vm.JUMPI)
	a.op(vm.DUP2, vm.ADD).decrement().pushLabel("triangle_loop").op(vm.JUMP)
	a.label("triangle_done").pushInt(7).op(vm.SIGNEXTEND).returnWord()

	a.label("odd").op(vm.POP).pushInt(4).op(vm.CALLDATALOAD).pushInt(1)
	a.label("odd_loop").op(vm.DUP2, vm.ISZERO).pushLabel("odd_done").op(vm.JUMPI)
	a.op(vm.DUP2, vm.DUP1, vm.ADD).pushInt(1).op(vm.SWAP1, vm.SUB, vm.MUL).decrement().pushLabel("odd_loop").op(vm.JUMP)
	a.label("odd_done").pushInt(7).op(vm.SIGNEXTEND).returnWord()

	// Same offsets as the ledger contract: (a + RemainderA - 1, b + RemainderB - 2).
	a.label("remainders").op(vm.POP)
	a.addToArgument(remainderWord(RemainderA, 1), 4, 0)
	a.addToArgument(remainderWord(RemainderB, 2), 36, 32)
	a.pushInt(64).op(vm.PUSH0, vm.RETURN)

	a.label("fail").pushInt(uint64(len(failData))).pushLabel("fail_data").op(vm.PUSH0, vm.CODECOPY)
	a.pushInt(uint64(len(failData))).op(vm.PUSH0, vm.REVERT)

	a.label("fail_custom").pushInt(uint64(len(customData))).pushLabel("custom_data").op(vm.PUSH0, vm.CODECOPY)
	a.pushInt(uint64(len(customData))).op(vm.PUSH0, vm.REVERT)

	a.label("invalid").op(vm.INVALID)

	a.label("store").op(vm.POP).pushInt(4).op(vm.CALLDATALOAD, vm.DUP1, vm.PUSH0, vm.SSTORE)
	a.push(stored.Bytes()).op(vm.PUSH0, vm.PUSH0, vm.LOG2, vm.STOP)

	a.label("load").op(vm.POP, vm.PUSH0, vm.SLOAD).returnWord()

	a.data("fail_data", failData)
	a.data("custom_data", customData)
	return a.bytes()
}

// EVMInitCode wraps runtime code in init code that returns it.
func EVMInitCode(runtime []byte) []byte {
	size := []byte{byte(len(runtime) >> 8), byte(len(runtime))}
	const prefixLen = 13
	code := []byte{
		byte(vm.PUSH2), size[0], size[1],
		byte(vm.PUSH2), 0, prefixLen,
		byte(vm.PUSH0), byte(vm.CODECOPY),
		byte(vm.PUSH2), size[0], size[1],
		byte(vm.PUSH0), byte(vm.RETURN),
	}
	return append(code, runtime...)
}

// EVMRevertingInitCode reverts with an Error(string) payload during construction.
func EVMRevertingInitCode(t *testing.T) []byte {
	data := RevertData(t, "constructor")
	a := newAssembler()
	a.pushInt(uint64(len(data))).pushLabel("data").op(vm.PUSH0, vm.CODECOPY)
	a.pushInt(uint64(len(data))).op(vm.PUSH0, vm.REVERT)
	a.data("data", data)
	return a.bytes()
}
