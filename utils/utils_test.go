package utils

import (
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyChainConfig(t *testing.T) {
	copied, err := CopyChainConfig(params.TestChainConfig)
	require.NoError(t, err)
	require.NotSame(t, params.TestChainConfig, copied)
	assert.Equal(t, params.TestChainConfig.ChainID, copied.ChainID)

	copied.ChainID = big.NewInt(4242)
	assert.NotEqual(t, int64(4242), params.TestChainConfig.ChainID.Int64())
}

func TestMessageToTransaction(t *testing.T) {
	to := common.HexToAddress("0x02")
	msg := &core.Message{
		From:      common.HexToAddress("0x01"),
		To:        &to,
		Nonce:     3,
		Value:     big.NewInt(0),
		GasLimit:  100_000,
		GasFeeCap: big.NewInt(1_000_000_000),
		GasTipCap: big.NewInt(0),
		Data:      []byte{1, 2, 3},
	}
	tx := MessageToTransaction(big.NewInt(1), msg)
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, msg.Data, tx.Data())

	other := *msg
	other.From = common.HexToAddress("0x03")
	assert.NotEqual(t, tx.Hash(), MessageToTransaction(big.NewInt(1), &other).Hash())
}

func TestHashPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("fn main() {}"), 0644))

	first, err := HashPath(dir, "target")
	require.NoError(t, err)

	// Skipped directories do not affect the digest.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target", "out.wasm"), []byte{0}, 0644))
	second, err := HashPath(dir, "target")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("fn main() { }"), 0644))
	third, err := HashPath(dir, "target")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, MakeDirectory(nested))
	assert.False(t, FileExists(nested))

	file := filepath.Join(nested, "contract.wasm")
	require.NoError(t, os.WriteFile(file, []byte{0, 'a', 's', 'm'}, 0644))
	assert.True(t, FileExists(file))
	assert.Equal(t, "contract", GetFileNameWithoutExtension(file))

	copied := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyDirectory(filepath.Join(dir, "a"), copied, true))
	assert.True(t, FileExists(filepath.Join(copied, "b", "contract.wasm")))
}

func TestRunCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	stdout, stderr, combined, err := RunCommandWithOutputAndError(exec.Command("sh", "-c", "echo out; echo err 1>&2"))
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
	assert.Contains(t, string(combined), "out")

	_, err = RequireExecutable("definitely-not-a-compiler")
	assert.Error(t, err)
}
