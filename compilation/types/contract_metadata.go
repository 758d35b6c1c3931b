package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor"
)

// SolcMetadata is the CBOR map solc appends to EVM bytecode. Keys include "ipfs" or "bzzr0"/"bzzr1" (hash of the
// metadata file) and "solc" (compiler version).
// Reference: https://docs.soliditylang.org/en/latest/metadata.html
type SolcMetadata map[string]any

// bytecodeHashKeys are the metadata keys that hold a hash of the contract metadata.
var bytecodeHashKeys = []string{"ipfs", "bzzr1", "bzzr0"}

// ExtractSolcMetadata decodes the CBOR metadata at the tail of EVM bytecode. solc stores the encoded length of the
// map in the final two bytes, big-endian. If no well-formed map is found, ok is false.
func ExtractSolcMetadata(bytecode []byte) (metadata SolcMetadata, ok bool) {
	if len(bytecode) < 2 {
		return nil, false
	}
	length := int(binary.BigEndian.Uint16(bytecode[len(bytecode)-2:]))
	start := len(bytecode) - 2 - length
	if length == 0 || start < 0 {
		return nil, false
	}
	if err := cbor.Unmarshal(bytecode[start:len(bytecode)-2], &metadata); err != nil {
		return nil, false
	}
	return metadata, len(metadata) > 0
}

// StripSolcMetadata returns bytecode without its trailing CBOR metadata, or the input unchanged if there is none.
func StripSolcMetadata(bytecode []byte) []byte {
	if _, ok := ExtractSolcMetadata(bytecode); !ok {
		return bytecode
	}
	length := int(binary.BigEndian.Uint16(bytecode[len(bytecode)-2:]))
	return bytes.Clone(bytecode[:len(bytecode)-2-length])
}

// BytecodeHash returns the metadata hash embedded by the compiler, or nil if there is none.
func (m SolcMetadata) BytecodeHash() []byte {
	for _, key := range bytecodeHashKeys {
		if value, ok := m[key].([]byte); ok {
			return value
		}
	}
	return nil
}

// CompilerVersion returns the solc version recorded in release builds (three bytes: major, minor, patch).
func (m SolcMetadata) CompilerVersion() (string, bool) {
	raw, ok := m["solc"].([]byte)
	if !ok || len(raw) != 3 {
		return "", false
	}
	return fmt.Sprintf("%d.%d.%d", raw[0], raw[1], raw[2]), true
}
