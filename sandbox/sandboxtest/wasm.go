package sandboxtest

// Wasm binary format constants used by the contract assembler.
const (
	wasmSectionType     = 1
	wasmSectionImport   = 2
	wasmSectionFunction = 3
	wasmSectionExport   = 7
	wasmSectionCode     = 10
	wasmSectionData     = 11

	wasmFuncType   = 0x60
	wasmValueF64   = 0x7c
	wasmLimitsBoth = 0x01
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// appendULEB128 appends the unsigned LEB128 encoding of v.
func appendULEB128(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// appendSLEB128 appends the signed LEB128 encoding of v.
func appendSLEB128(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendSection(b []byte, id byte, contents []byte) []byte {
	b = append(b, id)
	b = appendULEB128(b, uint64(len(contents)))
	return append(b, contents...)
}

func appendName(b []byte, name string) []byte {
	b = appendULEB128(b, uint64(len(name)))
	return append(b, name...)
}

// funcType encodes a function type.
func funcType(params []byte, results []byte) []byte {
	b := []byte{wasmFuncType}
	b = appendULEB128(b, uint64(len(params)))
	b = append(b, params...)
	b = appendULEB128(b, uint64(len(results)))
	return append(b, results...)
}

// importFunc encodes a function import.
func importFunc(module string, name string, typeIdx int) []byte {
	b := appendName(appendName(nil, module), name)
	return appendULEB128(append(b, 0x00), uint64(typeIdx))
}

// memoryImport encodes the import of env.memory with the given page limits.
func memoryImport(min byte, max byte) []byte {
	return append(appendName(appendName(nil, "env"), "memory"), 0x02, wasmLimitsBoth, min, max)
}

// vector encodes a counted vector of pre-encoded entries.
func vector(entries ...[]byte) []byte {
	b := appendULEB128(nil, uint64(len(entries)))
	for _, e := range entries {
		b = append(b, e...)
	}
	return b
}

// dataSegment encodes an active data segment at offset.
func dataSegment(offset int32, data []byte) []byte {
	b := []byte{0x00}
	b = appendSLEB128(append(b, opI32Const), int64(offset))
	b = append(b, opEnd)
	b = appendULEB128(b, uint64(len(data)))
	return append(b, data...)
}
