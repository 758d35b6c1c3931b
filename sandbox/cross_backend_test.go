package sandbox_test

import (
	"math/big"
	"testing"

	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/sandbox/evm"
	"github.com/crytic/schlau/sandbox/ledger"
	"github.com/crytic/schlau/sandbox/sandboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerRemainders deploys the ledger computation contract and calls remainders(a, b).
func ledgerRemainders(t *testing.T, a int64, b int64) []byte {
	s, err := ledger.NewSandbox(ledger.Config{})
	require.NoError(t, err)
	defer s.Close()

	table := sandboxtest.LedgerComputationTable(t)
	alice := s.Accounts().MustGet("alice")
	constructor, err := ledger.ConstructorInput(table, "new")
	require.NoError(t, err)
	remainders, err := ledger.NewMessage2[gsrpcTypes.U256, gsrpcTypes.U256](table, "remainders")
	require.NoError(t, err)

	create := ledger.NewCreateArgs(sandboxtest.LedgerComputationWasm(), alice).WithData(constructor)
	var buildErr error
	output, err := sandbox.DeployAndCall[accounts.AccountID, ledger.CreateArgs, ledger.CallArgs](s, create,
		func(contract accounts.AccountID) ledger.CallArgs {
			var args ledger.CallArgs
			call := remainders.Call(contract, gsrpcTypes.NewU256(*big.NewInt(a)), gsrpcTypes.NewU256(*big.NewInt(b)))
			args, buildErr = ledger.FromCallBuilder(alice, call)
			return args
		})
	require.NoError(t, buildErr)
	require.NoError(t, err)
	return output
}

// evmRemainders deploys the EVM computation contract and calls remainders(a, b).
func evmRemainders(t *testing.T, a int64, b int64) []byte {
	s, err := evm.NewSandbox(evm.Config{})
	require.NoError(t, err)
	defer s.Close()

	iface := sandboxtest.EVMComputationInterface(t)
	alice := s.Accounts().MustGet("alice")
	remainders, err := evm.NewFunction2[*big.Int, *big.Int](iface, "remainders")
	require.NoError(t, err)

	create := evm.NewCreateArgs(sandboxtest.EVMInitCode(sandboxtest.EVMComputationRuntime(t)), alice)
	var buildErr error
	output, err := sandbox.DeployAndCall[common.Address, evm.CreateArgs, evm.CallArgs](s, create,
		func(contract common.Address) evm.CallArgs {
			var args evm.CallArgs
			args, buildErr = evm.FromMethodCall(alice, remainders.Call(contract, big.NewInt(a), big.NewInt(b)))
			return args
		})
	require.NoError(t, buildErr)
	require.NoError(t, err)
	return output
}

// TestRemaindersAcrossBackends checks that remainders returns the same words on both backends once their byte
// orders are normalized.
func TestRemaindersAcrossBackends(t *testing.T) {
	for _, args := range [][2]int64{{1, 2}, {7, 1 << 40}} {
		ledgerOutput := ledgerRemainders(t, args[0], args[1])
		evmOutput := evmRemainders(t, args[0], args[1])
		require.Len(t, ledgerOutput, 64)
		require.Len(t, evmOutput, 64)

		ledgerWords, err := sandbox.CanonicalU256Words(ledgerOutput, sandbox.LittleEndian)
		require.NoError(t, err)
		evmWords, err := sandbox.CanonicalU256Words(evmOutput, sandbox.BigEndian)
		require.NoError(t, err)
		assert.Equal(t, evmWords, ledgerWords, "remainders(%d, %d)", args[0], args[1])

		if args == [2]int64{1, 2} {
			assert.Equal(t, common.FromHex(sandboxtest.RemainderA), ledgerWords[0][:])
			assert.Equal(t, common.FromHex(sandboxtest.RemainderB), ledgerWords[1][:])
		}
	}
}
