package platforms

import (
	"testing"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils/testutils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const combinedJSONFixture = `{
  "contracts": {
    "contracts/Computation.sol:Computation": {
      "abi": [{"inputs":[{"internalType":"int64","name":"n","type":"int64"}],"name":"triangle_number","outputs":[{"internalType":"int64","name":"","type":"int64"}],"stateMutability":"pure","type":"function"}],
      "bin": "6080604052"
    },
    "contracts/Computation.sol:IComputation": {
      "abi": [],
      "bin": ""
    }
  },
  "version": "0.8.24+commit.e11b9ed9.Linux.g++"
}`

// TestParseSolcCombinedJSON checks contract selection in solc combined-json output.
func TestParseSolcCombinedJSON(t *testing.T) {
	// Only one contract has bytecode, so no name is needed.
	artifact, err := parseSolcCombinedJSON([]byte(combinedJSONFixture), "")
	require.NoError(t, err)
	assert.Equal(t, "Computation", artifact.ContractName)
	assert.Equal(t, types.BackendEVM, artifact.Backend)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, artifact.Code)

	iface, err := artifact.EVMInterface()
	require.NoError(t, err)
	_, err = iface.Function("triangle_number")
	require.NoError(t, err)

	// An interface has no code.
	_, err = parseSolcCombinedJSON([]byte(combinedJSONFixture), "IComputation")
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))

	_, err = parseSolcCombinedJSON([]byte(combinedJSONFixture), "Missing")
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))

	_, err = parseSolcCombinedJSON([]byte("not json"), "")
	assert.True(t, errors.Is(err, types.ErrMalformedInterface))
}

// TestSolcCompileBrokenSource verifies that compiler diagnostics surface as build failures.
func TestSolcCompileBrokenSource(t *testing.T) {
	testutils.RequireBinary(t, "solc")

	path := testutils.WriteFile(t, t.TempDir(), "Broken.sol", []byte("pragma solidity ^0.8.0; contract Broken { function f( }"))
	config := NewSolcCompilationConfig(path)
	_, output, err := config.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBuildFailed))
	assert.NotEmpty(t, output)
}

// TestSolcCompile builds a small contract end to end when solc is available.
func TestSolcCompile(t *testing.T) {
	testutils.RequireBinary(t, "solc")

	source := `// SPDX-License-Identifier: MIT
pragma solidity >=0.8.0;
contract Counter {
    int64 value;
    function add(int64 n) public returns (int64) { value += n; return value; }
}`
	path := testutils.WriteFile(t, t.TempDir(), "Counter.sol", []byte(source))
	artifact, err := CompileContract(NewSolcCompilationConfig(path), path)
	require.NoError(t, err)
	assert.Equal(t, "Counter", artifact.ContractName)
	assert.Equal(t, "solc", artifact.Compiler)
	assert.NotEmpty(t, artifact.CompilerVersion)
	assert.NotEmpty(t, artifact.Code)
}
