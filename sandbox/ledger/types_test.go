package ledger

import (
	"math"
	"math/big"
	"testing"

	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/sandbox/sandboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWeight checks saturating addition, comparison and the compact encoding of weights.
func TestWeight(t *testing.T) {
	w := Weight{RefTime: math.MaxUint64 - 1, ProofSize: 1}.Add(Weight{RefTime: 5, ProofSize: 2})
	assert.Equal(t, Weight{RefTime: math.MaxUint64, ProofSize: 3}, w)
	assert.True(t, Weight{RefTime: 1, ProofSize: 1}.AllLTE(Weight{RefTime: 1, ProofSize: 2}))
	assert.False(t, Weight{RefTime: 2, ProofSize: 1}.AllLTE(Weight{RefTime: 1, ProofSize: 2}))

	assert.Equal(t, []byte{0x00, 0x04}, Weight{RefTime: 0, ProofSize: 1}.Encode())
	assert.Equal(t, []byte{0x01, 0x01, 0xfc}, Weight{RefTime: 64, ProofSize: 63}.Encode())
}

// TestBalanceEncoding checks the 128-bit balance range and encoding.
func TestBalanceEncoding(t *testing.T) {
	require.NoError(t, validateBalance(maxBalance))
	assert.Error(t, validateBalance(new(big.Int).Add(maxBalance, big.NewInt(1))))
	assert.Error(t, validateBalance(big.NewInt(-1)))

	encoded := encodeBalance(big.NewInt(258))
	require.Len(t, encoded, 16)
	assert.Equal(t, []byte{2, 1}, encoded[:2])
	decoded, err := decodeBalance(encoded)
	require.NoError(t, err)
	assert.EqualValues(t, 258, decoded.Int64())
}

// TestDecodeMessageResult checks the handling of the message result envelope.
func TestDecodeMessageResult(t *testing.T) {
	payload, err := DecodeMessageResult([]byte{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, payload)

	_, err = DecodeMessageResult([]byte{1, 1})
	var langErr *LangError
	require.ErrorAs(t, err, &langErr)
	assert.Contains(t, langErr.Error(), "could not read its input")

	for _, output := range [][]byte{nil, {1}, {2, 0}} {
		_, err = DecodeMessageResult(output)
		assert.Error(t, err)
	}

	value, err := DecodeMessageValue[uint32]([]byte{0, 7, 0, 0, 0})
	require.NoError(t, err)
	assert.EqualValues(t, 7, value)
}

// TestCheckDeterminism checks that floating point types are rejected in signatures and locals.
func TestCheckDeterminism(t *testing.T) {
	require.NoError(t, checkDeterminism(sandboxtest.LedgerComputationWasm()))
	assert.Error(t, checkDeterminism(sandboxtest.FloatWasm()))
	assert.Error(t, checkDeterminism([]byte{0x00, 0x61}))

	// One function of type () -> () with a single f32 local.
	body := []byte{1, 1, wasmValueF32, 0x0b}
	floatLocal := append([]byte{}, wasmHeader...)
	floatLocal = appendSection(floatLocal, wasmSectionType, []byte{1, wasmFuncType, 0, 0})
	floatLocal = appendSection(floatLocal, 3, []byte{1, 0})
	floatLocal = appendSection(floatLocal, wasmSectionCode, append([]byte{1, byte(len(body))}, body...))
	assert.Error(t, checkDeterminism(floatLocal))
}

// TestStorageKeys checks that fixed and variable-length keys never collide.
func TestStorageKeys(t *testing.T) {
	key := make([]byte, 32)
	assert.NotEqual(t, hashedKey(key, true), hashedKey(key, false))
	assert.Equal(t, hashedKey([]byte("a"), false), hashedKey([]byte("a"), false))
	assert.NotEqual(t, hashedKey([]byte("a"), false), hashedKey([]byte("b"), false))
}

// TestContractAddress checks that every address input changes the derived address.
func TestContractAddress(t *testing.T) {
	var deployer accounts.AccountID
	var codeHash [32]byte
	base := contractAddress(deployer, codeHash, []byte{1}, []byte{2})
	assert.Equal(t, base, contractAddress(deployer, codeHash, []byte{1}, []byte{2}))
	assert.NotEqual(t, base, contractAddress(deployer, codeHash, []byte{1}, []byte{3}))
	assert.NotEqual(t, base, contractAddress(deployer, codeHash, []byte{2}, []byte{2}))
	codeHash[0] = 1
	assert.NotEqual(t, base, contractAddress(deployer, codeHash, []byte{1}, []byte{2}))
}
