package ledger

import (
	"bytes"

	"github.com/pkg/errors"
)

// Wasm binary format constants used when inspecting contract code and generating the memory module.
const (
	wasmSectionType   = 1
	wasmSectionMemory = 5
	wasmSectionExport = 7
	wasmSectionCode   = 10

	wasmFuncType   = 0x60
	wasmValueF32   = 0x7d
	wasmValueF64   = 0x7c
	wasmExportMem  = 0x02
	wasmLimitsMin  = 0x00
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

// appendSection appends a section with the given id and contents.
func appendSection(b []byte, id byte, contents []byte) []byte {
	b = append(b, id)
	b = appendULEB128(b, uint64(len(contents)))
	return append(b, contents...)
}

// appendName appends a length-prefixed name.
func appendName(b []byte, name string) []byte {
	b = appendULEB128(b, uint64(len(name)))
	return append(b, name...)
}

// memoryLimits are the page limits of the memory a contract imports.
type memoryLimits struct {
	min uint32
	max uint32
}

// memoryModule generates a module exporting a single memory named "memory" with the given limits. Contracts import
// their memory from the "env" module, which is provided by instantiating this module under that name.
func memoryModule(limits memoryLimits) []byte {
	memory := appendULEB128(nil, 1)
	memory = append(memory, wasmLimitsBoth)
	memory = appendULEB128(memory, uint64(limits.min))
	memory = appendULEB128(memory, uint64(limits.max))

	export := appendULEB128(nil, 1)
	export = appendName(export, "memory")
	export = append(export, wasmExportMem)
	export = appendULEB128(export, 0)

	module := bytes.Clone(wasmHeader)
	module = appendSection(module, wasmSectionMemory, memory)
	return appendSection(module, wasmSectionExport, export)
}

// wasmReader decodes the primitive encodings of the Wasm binary format.
type wasmReader struct {
	data []byte
	pos  int
}

func (r *wasmReader) done() bool {
	return r.pos >= len(r.data)
}

func (r *wasmReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.New("unexpected end of module")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *wasmReader) uleb128() (uint64, error) {
	var result uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, errors.New("LEB128 integer is too long")
}

func (r *wasmReader) bytes(n uint64) ([]byte, error) {
	if n > uint64(len(r.data)-r.pos) {
		return nil, errors.New("unexpected end of module")
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// checkDeterminism rejects code that declares floating point values in function signatures or locals. Float
// arithmetic is not deterministic across platforms, so contracts must not use it.
func checkDeterminism(code []byte) error {
	if !bytes.HasPrefix(code, wasmHeader) {
		return errors.New("code is not a Wasm module")
	}
	r := &wasmReader{data: code, pos: len(wasmHeader)}
	for !r.done() {
		id, err := r.readByte()
		if err != nil {
			return err
		}
		size, err := r.uleb128()
		if err != nil {
			return err
		}
		contents, err := r.bytes(size)
		if err != nil {
			return err
		}

		switch id {
		case wasmSectionType:
			err = checkTypeSection(&wasmReader{data: contents})
		case wasmSectionCode:
			err = checkCodeSection(&wasmReader{data: contents})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isFloat(valueType byte) bool {
	return valueType == wasmValueF32 || valueType == wasmValueF64
}

func checkTypeSection(r *wasmReader) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		form, err := r.readByte()
		if err != nil {
			return err
		}
		if form != wasmFuncType {
			return errors.Errorf("type %d has unknown form 0x%x", i, form)
		}
		// Parameters, then results.
		for j := 0; j < 2; j++ {
			n, err := r.uleb128()
			if err != nil {
				return err
			}
			valueTypes, err := r.bytes(n)
			if err != nil {
				return err
			}
			for _, vt := range valueTypes {
				if isFloat(vt) {
					return errors.Errorf("function type %d uses floating point values", i)
				}
			}
		}
	}
	return nil
}

func checkCodeSection(r *wasmReader) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		size, err := r.uleb128()
		if err != nil {
			return err
		}
		body, err := r.bytes(size)
		if err != nil {
			return err
		}

		br := &wasmReader{data: body}
		groups, err := br.uleb128()
		if err != nil {
			return err
		}
		for j := uint64(0); j < groups; j++ {
			if _, err = br.uleb128(); err != nil {
				return err
			}
			vt, err := br.readByte()
			if err != nil {
				return err
			}
			if isFloat(vt) {
				return errors.Errorf("function body %d declares floating point locals", i)
			}
		}
	}
	return nil
}
