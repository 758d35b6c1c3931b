package config

import (
	"math/big"
	"testing"

	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerValues checks conversion of arguments into SCALE-encodable values.
func TestLedgerValues(t *testing.T) {
	alice, err := accounts.LedgerDevAccount("alice")
	require.NoError(t, err)

	testCases := []struct {
		arg      ArgumentConfig
		expected any
	}{
		{ArgumentConfig{"int64", "3000000"}, int64(3_000_000)},
		{ArgumentConfig{"i32", "-5"}, int32(-5)},
		{ArgumentConfig{"u8", "255"}, uint8(255)},
		{ArgumentConfig{"uint16", "0x10"}, uint16(16)},
		{ArgumentConfig{"u64", "1e3"}, uint64(1000)},
		{ArgumentConfig{"u128", "1000000000000000"}, gsrpcTypes.NewU128(*big.NewInt(1_000_000_000_000_000))},
		{ArgumentConfig{"bool", "true"}, true},
		{ArgumentConfig{"string", "hello"}, "hello"},
		{ArgumentConfig{"bytes", "0x0102"}, []byte{1, 2}},
		{ArgumentConfig{"account", "alice"}, alice.ID},
		{ArgumentConfig{"account", alice.ID.String()}, alice.ID},
	}
	for _, tc := range testCases {
		value, err := tc.arg.LedgerValue()
		require.NoError(t, err, tc.arg)
		assert.Equal(t, tc.expected, value, tc.arg)
	}

	for _, arg := range []ArgumentConfig{
		{"u8", "256"},
		{"i8", "-129"},
		{"u32", "-1"},
		{"int64", "1.5"},
		{"bool", "maybe"},
		{"account", "0x01"},
		{"f64", "1"},
		{"u7", "1"},
	} {
		_, err := arg.LedgerValue()
		assert.Error(t, err, arg)
	}
}

// TestEVMValues checks conversion of arguments into the Go types of the ABI encoder.
func TestEVMValues(t *testing.T) {
	testCases := []struct {
		arg      ArgumentConfig
		expected any
	}{
		{ArgumentConfig{"int64", "3000000"}, int64(3_000_000)},
		{ArgumentConfig{"int32", "-2"}, int32(-2)},
		{ArgumentConfig{"uint256", "2"}, big.NewInt(2)},
		{ArgumentConfig{"int128", "-2"}, big.NewInt(-2)},
		{ArgumentConfig{"uint24", "7"}, big.NewInt(7)},
		{ArgumentConfig{"bool", "false"}, false},
		{ArgumentConfig{"address", "0x0101010101010101010101010101010101010101"}, accounts.DefaultEVMAccount},
		{ArgumentConfig{"address", "default"}, accounts.DefaultEVMAccount},
		{ArgumentConfig{"address", "bob"}, accounts.EVMDevAccount("bob").ID},
		{ArgumentConfig{"bytes32", common.Hash{31: 1}.Hex()}, [32]byte{31: 1}},
	}
	for _, tc := range testCases {
		value, err := tc.arg.EVMValue()
		require.NoError(t, err, tc.arg)
		assert.Equal(t, tc.expected, value, tc.arg)
	}

	for _, arg := range []ArgumentConfig{
		{"uint256", "-1"},
		{"address", "mallory"},
		{"bytes32", "0x01"},
		{"tuple", "()"},
	} {
		_, err := arg.EVMValue()
		assert.Error(t, err, arg)
	}
}

// TestArgumentValues checks backend selection and error positions.
func TestArgumentValues(t *testing.T) {
	args := []ArgumentConfig{{"u128", "1"}, {"bool", "true"}}
	values, err := ArgumentValues(args, types.BackendLedger)
	require.NoError(t, err)
	assert.Len(t, values, 2)

	_, err = ArgumentValues(args, types.BackendEVM)
	assert.NoError(t, err)

	_, err = ArgumentValues([]ArgumentConfig{{"bool", "true"}, {"u8", "x"}}, types.BackendEVM)
	assert.ErrorContains(t, err, "argument 1")

	_, err = ArgumentValues(args, types.Backend("wasm"))
	assert.Error(t, err)
}
