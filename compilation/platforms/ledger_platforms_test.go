package platforms

import (
	"testing"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils/testutils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flipperMetadata = `{
  "source": {"hash": "0xabcd", "language": "Solidity 0.3.3", "compiler": "solang 0.3.3"},
  "contract": {"name": "flipper", "version": "0.0.1"},
  "spec": {
    "constructors": [{"label": "new", "selector": "0xcae60595", "args": [{"label": "initvalue", "type": {"displayName": ["bool"], "type": 0}}]}],
    "messages": [{"label": "flip", "selector": "0xcde4efa9", "args": [], "mutates": true}]
  },
  "version": "4"
}`

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// TestLoadLedgerArtifactFromDirectory mirrors the layout solang writes to its output directory.
func TestLoadLedgerArtifactFromDirectory(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "flipper.wasm", wasmHeader)
	testutils.WriteFile(t, dir, "flipper.contract", []byte(flipperMetadata))

	artifact, err := LoadLedgerArtifactFromDirectory(dir, "flipper")
	require.NoError(t, err)
	assert.Equal(t, types.BackendLedger, artifact.Backend)
	assert.Equal(t, wasmHeader, artifact.Code)

	selector, err := artifact.MessageSelector("flip")
	require.NoError(t, err)
	assert.Equal(t, "0xcde4efa9", selector.String())

	// Without a wasm file and without embedded code the artifact is incomplete.
	empty := t.TempDir()
	testutils.WriteFile(t, empty, "flipper.json", []byte(flipperMetadata))
	_, err = LoadLedgerArtifactFromDirectory(empty, "flipper")
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))

	_, err = LoadLedgerArtifactFromDirectory(t.TempDir(), "flipper")
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))
}

// TestParseCargoContractResult checks both generations of cargo-contract's build result.
func TestParseCargoContractResult(t *testing.T) {
	stdout := []byte(`   Compiling computation v0.1.0
{
  "dest_wasm": "/tmp/target/ink/computation.wasm",
  "metadata_result": {"dest_metadata": "/tmp/target/ink/computation.json", "dest_bundle": "/tmp/target/ink/computation.contract"},
  "target_directory": "/tmp/target/ink"
}`)
	result, err := parseCargoContractResult(stdout)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/target/ink/computation.wasm", result.DestWasm)
	assert.Equal(t, "/tmp/target/ink/computation.contract", result.MetadataResult.DestBundle)

	result, err = parseCargoContractResult([]byte(`{"dest_binary": "/t/c.polkavm", "metadata_result": {"dest_metadata": "/t/c.json"}}`))
	require.NoError(t, err)
	assert.Equal(t, "/t/c.polkavm", result.DestBinary)

	_, err = parseCargoContractResult([]byte("error: could not find Cargo.toml"))
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))

	_, err = parseCargoContractResult([]byte(`{"metadata_result": null}`))
	assert.True(t, errors.Is(err, types.ErrArtifactMissing))
}

// TestInkManifestPath resolves crate directories and manifest paths alike.
func TestInkManifestPath(t *testing.T) {
	assert.Equal(t, "crates/computation/Cargo.toml", NewInkCompilationConfig("crates/computation").manifestPath())
	assert.Equal(t, "crates/computation/Cargo.toml", NewInkCompilationConfig("crates/computation/Cargo.toml").manifestPath())
}

// TestSolangCompileBrokenSource verifies that compiler diagnostics surface as build failures.
func TestSolangCompileBrokenSource(t *testing.T) {
	testutils.RequireBinary(t, "solang")

	dir := t.TempDir()
	path := testutils.WriteFile(t, dir, "broken.sol", []byte("contract broken { function f( }"))
	config := NewSolangCompilationConfig(path)
	config.OutputDirectory = dir
	_, _, err := config.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBuildFailed))
}
