package sandboxtest

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/schlau/compilation/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// Selectors of the ledger computation contract. The unimplemented message is declared in the metadata but not
// dispatched by the contract.
const (
	selectorNew             = "9bae9d5e"
	selectorNewReverting    = "deadbeef"
	selectorTriangleNumber  = "2a4b1c33"
	selectorOddProduct      = "0b6ef7a1"
	selectorStore           = "11111111"
	selectorLoad            = "22222222"
	selectorDebug           = "33333333"
	selectorFail            = "44444444"
	selectorTrap            = "55555555"
	selectorStoreThenRevert = "66666666"
	selectorRemainders      = "77777777"
	selectorKeccak          = "88888888"
	selectorSpin            = "99999999"
	selectorUnimplemented   = "09090909"
)

// LedgerComputationMetadata describes the ledger computation contract the way contract metadata bundles do.
var LedgerComputationMetadata = fmt.Sprintf(`{
  "source": {"hash": "0x00", "language": "ink! 5.0.0", "compiler": "rustc"},
  "contract": {"name": "computation", "version": "0.1.0"},
  "spec": {
    "constructors": [
      {"label": "new", "selector": "0x%s", "args": []},
      {"label": "new_reverting", "selector": "0x%s", "args": []}
    ],
    "messages": [
      {"label": "triangle_number", "selector": "0x%s", "args": [{"label": "n", "type": {"displayName": ["i64"]}}]},
      {"label": "odd_product", "selector": "0x%s", "args": [{"label": "n", "type": {"displayName": ["i32"]}}]},
      {"label": "store", "selector": "0x%s", "args": [{"label": "v", "type": {"displayName": ["u32"]}}], "mutates": true},
      {"label": "load", "selector": "0x%s", "args": []},
      {"label": "debug", "selector": "0x%s", "args": []},
      {"label": "fail", "selector": "0x%s", "args": []},
      {"label": "trap", "selector": "0x%s", "args": []},
      {"label": "store_then_revert", "selector": "0x%s", "args": [{"label": "v", "type": {"displayName": ["u32"]}}], "mutates": true},
      {"label": "remainders", "selector": "0x%s", "args": [{"label": "a", "type": {"displayName": ["U256"]}}, {"label": "b", "type": {"displayName": ["U256"]}}]},
      {"label": "keccak", "selector": "0x%s", "args": [{"label": "data", "type": {"displayName": ["Vec"]}}]},
      {"label": "spin", "selector": "0x%s", "args": []},
      {"label": "unimplemented", "selector": "0x%s", "args": []}
    ]
  }
}`, selectorNew, selectorNewReverting, selectorTriangleNumber, selectorOddProduct, selectorStore, selectorLoad,
	selectorDebug, selectorFail, selectorTrap, selectorStoreThenRevert, selectorRemainders, selectorKeccak, selectorSpin,
	selectorUnimplemented)

// LedgerComputationTable parses LedgerComputationMetadata.
func LedgerComputationTable(t *testing.T) *types.InterfaceTable {
	table, err := types.ParseInterfaceTable([]byte(LedgerComputationMetadata))
	require.NoError(t, err)
	return table
}

// Wasm opcodes used by the contract assembler.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opI32Load     = 0x28
	opI64Load     = 0x29
	opI32Store    = 0x36
	opI64Store    = 0x37
	opI32Store8   = 0x3a
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Ne       = 0x47
	opI64Eqz      = 0x50
	opI64LtU      = 0x54
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI64Add      = 0x7c
	opI64Sub      = 0x7d
	opI64Mul      = 0x7e
	opI64Or       = 0x84
	opI64ExtendS  = 0xac
	opI64ExtendU  = 0xad
	blockVoid     = 0x40
	valueI32      = 0x7f
	valueI64      = 0x7e
)

// Function indices: imports first, then the two entry points.
const (
	fnInput = iota
	fnReturn
	fnSetStorage
	fnGetStorage
	fnDebugMessage
	fnHashKeccak
	fnDeploy
	fnCall
)

// Memory layout of the contract.
const (
	inputBuffer    = 0
	inputLen       = 256
	outputBuffer   = 512
	keyAddress     = 600
	langErrorOut   = 620
	helloAddress   = 640
	loadLenPtr     = 700
	loadBuffer     = 704
	remainderBaseA = 768
	remainderBaseB = 800
)

// Return values of remainders(1, 2), as big-endian hex.
const (
	RemainderA = "2f1d314463072898fe68dcbfeadc1fa2ed55a9fa6fdfd6f987874cc75be14329"
	RemainderB = "1599c327374526a85df07b0fe9645bc6a121678cb142390d7a26c1564a264af8"
)

// remainderWord returns word-offset, the constant remainders adds its argument to.
func remainderWord(word string, offset uint64) *uint256.Int {
	base := new(uint256.Int).SetBytes(common.FromHex(word))
	return base.Sub(base, uint256.NewInt(offset))
}

// remainderBase is remainderWord as a little-endian word.
func remainderBase(word string, offset uint64) []byte {
	b := remainderWord(word, offset).Bytes32()
	le := b[:]
	slices.Reverse(le)
	return le
}

type asm []byte

func (c asm) op(ops ...byte) asm { return append(c, ops...) }

func (c asm) i32(v int32) asm { return appendSLEB128(append(c, opI32Const), int64(v)) }

func (c asm) i64(v int64) asm { return appendSLEB128(append(c, opI64Const), v) }

func (c asm) call(fn int) asm { return appendULEB128(append(c, opCall), uint64(fn)) }

func (c asm) local(op byte, idx int) asm { return appendULEB128(append(c, op), uint64(idx)) }

// mem appends a load or store with alignment hint 0 and the given offset.
func (c asm) mem(op byte, offset uint32) asm {
	return appendULEB128(append(c, op, 0), uint64(offset))
}

// selectorWord is the selector as read by an i32.load of the input buffer.
func selectorWord(selector string) int32 {
	b, err := hex.DecodeString(selector)
	if err != nil {
		panic(err)
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// readInput stores the input capacity at inputLen and copies the input to the input buffer.
func (c asm) readInput() asm {
	return c.i32(inputLen).i32(inputLen).mem(opI32Store, 0).
		i32(inputBuffer).i32(inputLen).call(fnInput)
}

// onSelector runs body if the input starts with selector.
func (c asm) onSelector(selector string, body asm) asm {
	c = c.op(opBlock, blockVoid).
		i32(0).mem(opI32Load, inputBuffer).i32(selectorWord(selector)).op(opI32Ne, opBrIf, 0)
	c = append(c, body...)
	return c.op(opEnd)
}

// sealReturn returns flags and length bytes at ptr.
func (c asm) sealReturn(flags int32, ptr int32, length int32) asm {
	return c.i32(flags).i32(ptr).i32(length).call(fnReturn).op(opReturn)
}

// returnOkI64 returns Ok(local 1) as an ink! message result.
func (c asm) returnOkI64() asm {
	return c.i32(outputBuffer).i32(0).mem(opI32Store8, 0).
		i32(0).local(opLocalGet, 1).mem(opI64Store, outputBuffer+1).
		sealReturn(0, outputBuffer, 9)
}

// returnOkUnit returns Ok(()).
func (c asm) returnOkUnit() asm {
	return c.i32(outputBuffer).i32(0).mem(opI32Store8, 0).sealReturn(0, outputBuffer, 1)
}

// countdown runs step while local 0 is non-zero, decrementing it after each step.
func (c asm) countdown(step asm) asm {
	c = c.op(opBlock, blockVoid, opLoop, blockVoid).
		local(opLocalGet, 0).op(opI64Eqz, opBrIf, 1)
	c = append(c, step...)
	return c.local(opLocalGet, 0).i64(1).op(opI64Sub).local(opLocalSet, 0).
		op(opBr, 0, opEnd, opEnd)
}

func (c asm) setStorage() asm {
	return c.i32(keyAddress).i32(4).i32(inputBuffer + 4).i32(4).call(fnSetStorage).op(opDrop)
}

// add256 stores the wrapping sum of the little-endian words at base and operand to out. Local 0 holds the carry and
// local 1 the limb sum.
func (c asm) add256(base uint32, operand uint32, out uint32) asm {
	c = c.i64(0).local(opLocalSet, 0)
	for limb := uint32(0); limb < 32; limb += 8 {
		c = c.i32(0).mem(opI64Load, base+limb).i32(0).mem(opI64Load, operand+limb).op(opI64Add).local(opLocalSet, 1).
			local(opLocalGet, 1).i32(0).mem(opI64Load, base+limb).op(opI64LtU, opI64ExtendU).
			i32(0).local(opLocalGet, 1).local(opLocalGet, 0).op(opI64Add).mem(opI64Store, out+limb).
			i32(0).mem(opI64Load, out+limb).local(opLocalGet, 1).op(opI64LtU, opI64ExtendU, opI64Or).local(opLocalSet, 0)
	}
	return c
}

// callBody is the "call" entry point. Locals 0 and 1 are i64.
func callBody() asm {
	c := asm{}.readInput()

	c = c.onSelector(selectorTriangleNumber, asm{}.
		i32(0).mem(opI64Load, inputBuffer+4).local(opLocalSet, 0).
		i64(0).local(opLocalSet, 1).
		countdown(asm{}.local(opLocalGet, 1).local(opLocalGet, 0).op(opI64Add).local(opLocalSet, 1)).
		returnOkI64())

	c = c.onSelector(selectorOddProduct, asm{}.
		i32(0).mem(opI32Load, inputBuffer+4).op(opI64ExtendS).local(opLocalSet, 0).
		i64(1).local(opLocalSet, 1).
		countdown(asm{}.local(opLocalGet, 1).
			local(opLocalGet, 0).i64(2).op(opI64Mul).i64(1).op(opI64Sub).
			op(opI64Mul).local(opLocalSet, 1)).
		returnOkI64())

	c = c.onSelector(selectorStore, asm{}.setStorage().returnOkUnit())

	c = c.onSelector(selectorStoreThenRevert, asm{}.setStorage().sealReturn(1, inputBuffer, 4))

	// get_storage returns non-zero for an absent key.
	c = c.onSelector(selectorLoad, asm{}.
		i32(loadLenPtr).i32(64).mem(opI32Store, 0).
		i32(keyAddress).i32(4).i32(loadBuffer).i32(loadLenPtr).call(fnGetStorage).
		op(opIf, blockVoid, opUnreachable, opEnd).
		i32(loadBuffer-1).i32(0).mem(opI32Store8, 0).
		i32(0).i32(loadBuffer-1).
		i32(0).mem(opI32Load, loadLenPtr).i32(1).op(opI32Add).
		call(fnReturn).op(opReturn))

	c = c.onSelector(selectorDebug, asm{}.
		i32(helloAddress).i32(5).call(fnDebugMessage).op(opDrop).
		returnOkUnit())

	c = c.onSelector(selectorFail, asm{}.sealReturn(1, inputBuffer, 4))

	c = c.onSelector(selectorTrap, asm{}.op(opUnreachable))

	// Returns the SCALE tuple (U256, U256) without a result envelope.
	c = c.onSelector(selectorRemainders, asm{}.
		add256(remainderBaseA, inputBuffer+4, outputBuffer).
		add256(remainderBaseB, inputBuffer+36, outputBuffer+32).
		sealReturn(0, outputBuffer, 64))

	// Hashes the raw input after the selector.
	c = c.onSelector(selectorKeccak, asm{}.
		i32(inputBuffer+4).i32(0).mem(opI32Load, inputLen).i32(4).op(opI32Sub).i32(outputBuffer).call(fnHashKeccak).
		sealReturn(0, outputBuffer, 32))

	c = c.onSelector(selectorSpin, asm{}.op(opLoop, blockVoid, opBr, 0, opEnd))

	// Unknown selector: Err(LangError::CouldNotReadInput) with the revert flag.
	return c.sealReturn(1, langErrorOut, 2)
}

// deployBody is the "deploy" entry point: it reverts for new_reverting and accepts anything else.
func deployBody() asm {
	return asm{}.readInput().
		onSelector(selectorNewReverting, asm{}.sealReturn(1, inputBuffer, 4))
}

// functionBody encodes a body with two i64 locals.
func functionBody(c asm) []byte {
	body := append([]byte{1, 2, valueI64}, c...)
	body = append(body, opEnd)
	return append(appendULEB128(nil, uint64(len(body))), body...)
}

// LedgerComputationWasm assembles the ledger computation contract.
func LedgerComputationWasm() []byte {
	i32 := byte(valueI32)
	typeSection := vector(
		funcType([]byte{i32, i32}, nil),
		funcType([]byte{i32, i32, i32}, nil),
		funcType(nil, nil),
		funcType([]byte{i32, i32, i32, i32}, []byte{i32}),
		funcType([]byte{i32, i32}, []byte{i32}),
	)
	importSection := vector(
		importFunc("seal0", "seal_input", 0),
		importFunc("seal0", "seal_return", 1),
		importFunc("seal2", "set_storage", 3),
		importFunc("seal1", "get_storage", 3),
		importFunc("seal0", "debug_message", 4),
		importFunc("seal0", "hash_keccak_256", 1),
		memoryImport(1, 16),
	)

	functionSection := vector([]byte{2}, []byte{2})
	exportSection := vector(
		append(appendName(nil, "deploy"), 0x00, fnDeploy),
		append(appendName(nil, "call"), 0x00, fnCall),
	)
	codeSection := vector(functionBody(deployBody()), functionBody(callBody()))
	dataSection := vector(
		dataSegment(keyAddress, []byte("key1")),
		dataSegment(langErrorOut, []byte{0x01, 0x01}),
		dataSegment(helloAddress, []byte("hello")),
		dataSegment(remainderBaseA, remainderBase(RemainderA, 1)),
		dataSegment(remainderBaseB, remainderBase(RemainderB, 2)),
	)

	module := slices.Clone(wasmHeader)
	module = appendSection(module, wasmSectionType, typeSection)
	module = appendSection(module, wasmSectionImport, importSection)
	module = appendSection(module, wasmSectionFunction, functionSection)
	module = appendSection(module, wasmSectionExport, exportSection)
	module = appendSection(module, wasmSectionCode, codeSection)
	return appendSection(module, wasmSectionData, dataSection)
}

// FloatWasm declares a function type with a floating point parameter.
func FloatWasm() []byte {
	module := slices.Clone(wasmHeader)
	return appendSection(module, wasmSectionType, vector(funcType([]byte{wasmValueF64}, nil)))
}

// UnknownImportWasm imports a host function no engine provides.
func UnknownImportWasm() []byte {
	typeSection := vector(funcType(nil, nil))
	importSection := vector(importFunc("seal0", "seal_call_runtime", 0), memoryImport(1, 16))
	functionSection := vector([]byte{0}, []byte{0})
	exportSection := vector(
		append(appendName(nil, "deploy"), 0x00, 1),
		append(appendName(nil, "call"), 0x00, 2),
	)
	empty := []byte{0x02, 0x00, opEnd}
	codeSection := vector(empty, empty)

	module := slices.Clone(wasmHeader)
	module = appendSection(module, wasmSectionType, typeSection)
	module = appendSection(module, wasmSectionImport, importSection)
	module = appendSection(module, wasmSectionFunction, functionSection)
	module = appendSection(module, wasmSectionExport, exportSection)
	return appendSection(module, wasmSectionCode, codeSection)
}
