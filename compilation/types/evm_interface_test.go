package types

import (
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arithmeticsABI = `[
  {"type": "constructor", "inputs": [], "stateMutability": "nonpayable"},
  {"type": "function", "name": "remainders", "stateMutability": "pure",
   "inputs": [{"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}],
   "outputs": [{"name": "", "type": "uint256"}, {"name": "", "type": "uint256"}]},
  {"type": "function", "name": "scale", "stateMutability": "pure",
   "inputs": [{"name": "a", "type": "uint256"}], "outputs": [{"name": "", "type": "uint256"}]},
  {"type": "function", "name": "scale", "stateMutability": "pure",
   "inputs": [{"name": "a", "type": "int64"}], "outputs": [{"name": "", "type": "int64"}]}
]`

// TestEVMInterfaceLookup covers exact names, full signatures and overload disambiguation.
func TestEVMInterfaceLookup(t *testing.T) {
	iface, err := ParseEVMInterface([]byte(arithmeticsABI))
	require.NoError(t, err)

	method, err := iface.Function("remainders")
	require.NoError(t, err)
	assert.Equal(t, "remainders(uint256,uint256)", method.Sig)
	assert.Len(t, method.ID, 4)

	_, err = iface.Function("scale")
	assert.True(t, errors.Is(err, ErrAmbiguousFunction))

	method, err = iface.Function("scale(int64)")
	require.NoError(t, err)
	assert.Equal(t, "int64", method.Inputs[0].Type.String())

	_, err = iface.Function("Remainders")
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
	_, err = iface.Function("scale(uint8)")
	assert.True(t, errors.Is(err, ErrFunctionNotFound))

	assert.Equal(t, []string{"remainders(uint256,uint256)", "scale(int64)", "scale(uint256)"}, iface.Signatures())
}

// TestParseEVMInterfaceStringEncoded accepts an ABI given as a JSON string, and rejects garbage.
func TestParseEVMInterfaceStringEncoded(t *testing.T) {
	iface, err := ParseEVMInterface([]byte(strconv.Quote(arithmeticsABI)))
	require.NoError(t, err)
	_, err = iface.Function("remainders")
	assert.NoError(t, err)

	_, err = ParseEVMInterface([]byte(`{"not": "an abi"`))
	assert.True(t, errors.Is(err, ErrMalformedInterface))
}

// TestNewEVMArtifact checks EVM artifacts reject empty code and expose only the EVM interface.
func TestNewEVMArtifact(t *testing.T) {
	_, err := NewEVMArtifact("Arithmetics", nil, []byte(arithmeticsABI))
	assert.True(t, errors.Is(err, ErrArtifactMissing))

	artifact, err := NewEVMArtifact("Arithmetics", []byte{0x60, 0x00}, []byte(arithmeticsABI))
	require.NoError(t, err)
	_, err = artifact.MessageSelector("remainders")
	assert.True(t, errors.Is(err, ErrBackendMismatch))
	_, err = artifact.EVMInterface()
	assert.NoError(t, err)
	assert.Len(t, artifact.CodeHash(), 66)
}

// TestSolcMetadata appends a CBOR metadata map to bytecode and reads it back.
func TestSolcMetadata(t *testing.T) {
	hash := make([]byte, 34)
	hash[0] = 0x12
	encoded, err := cbor.Marshal(map[string]any{
		"ipfs": hash,
		"solc": []byte{0, 8, 24},
	}, cbor.EncOptions{})
	require.NoError(t, err)

	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	withMetadata := append(append([]byte{}, code...), encoded...)
	withMetadata = binary.BigEndian.AppendUint16(withMetadata, uint16(len(encoded)))

	metadata, ok := ExtractSolcMetadata(withMetadata)
	require.True(t, ok)
	assert.Equal(t, hash, metadata.BytecodeHash())
	version, ok := metadata.CompilerVersion()
	assert.True(t, ok)
	assert.Equal(t, "0.8.24", version)
	assert.Equal(t, code, StripSolcMetadata(withMetadata))

	_, ok = ExtractSolcMetadata(code)
	assert.False(t, ok)
	assert.Equal(t, code, StripSolcMetadata(code))
}
