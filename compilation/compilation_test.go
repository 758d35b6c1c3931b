package compilation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/crytic/schlau/compilation/platforms"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/utils/testutils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterABI = `[{"inputs":[{"internalType":"int64","name":"n","type":"int64"}],"name":"add","outputs":[{"internalType":"int64","name":"","type":"int64"}],"stateMutability":"nonpayable","type":"function"}]`

// TestSupportedPlatforms checks the platform registry.
func TestSupportedPlatforms(t *testing.T) {
	assert.Equal(t, []string{"ink", "solang", "solc"}, GetSupportedCompilationPlatforms())
	assert.True(t, IsSupportedCompilationPlatform("solang"))
	assert.False(t, IsSupportedCompilationPlatform("truffle"))

	_, err := NewCompilationConfig("truffle")
	assert.Error(t, err)
}

// TestCompilationConfigRoundTrip verifies that platform settings survive serialization and select the right backend.
func TestCompilationConfigRoundTrip(t *testing.T) {
	solang := platforms.NewSolangCompilationConfig("contracts/computation.sol")
	solang.OptimizationLevel = "less"
	config, err := NewCompilationConfigFromPlatformConfig(solang)
	require.NoError(t, err)

	b, err := json.Marshal(config)
	require.NoError(t, err)
	var decoded CompilationConfig
	require.NoError(t, json.Unmarshal(b, &decoded))

	platformConfig, err := decoded.GetPlatformConfig()
	require.NoError(t, err)
	require.IsType(t, &platforms.SolangCompilationConfig{}, platformConfig)
	assert.Equal(t, "less", platformConfig.(*platforms.SolangCompilationConfig).OptimizationLevel)
	assert.Equal(t, "contracts/computation.sol", platformConfig.GetTarget())

	backend, err := decoded.Backend()
	require.NoError(t, err)
	assert.Equal(t, types.BackendLedger, backend)

	for platform, expected := range map[string]types.Backend{"ink": types.BackendLedger, "solc": types.BackendEVM} {
		config, err := NewCompilationConfig(platform)
		require.NoError(t, err)
		backend, err := config.Backend()
		require.NoError(t, err)
		assert.Equal(t, expected, backend, platform)
	}
}

// TestArtifactCache stores and reloads an artifact, including its parsed interface.
func TestArtifactCache(t *testing.T) {
	cache, err := OpenArtifactCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	_, _, found, err := cache.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	artifact, err := types.NewEVMArtifact("Counter", []byte{0x60, 0x80}, []byte(counterABI))
	require.NoError(t, err)
	require.NoError(t, cache.Put("key", artifact))

	loaded, builtAt, found, err := cache.Get("key")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, time.Now(), builtAt, time.Minute)
	assert.Equal(t, artifact.ContractName, loaded.ContractName)
	assert.Equal(t, artifact.Code, loaded.Code)
	assert.Equal(t, artifact.CodeHash(), loaded.CodeHash())

	iface, err := loaded.EVMInterface()
	require.NoError(t, err)
	_, err = iface.Function("add")
	assert.NoError(t, err)

	require.NoError(t, cache.Delete("key"))
	_, _, found, err = cache.Get("key")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestComputeCacheKey verifies that the key follows source content and platform settings.
func TestComputeCacheKey(t *testing.T) {
	dir := t.TempDir()
	source := testutils.WriteFile(t, dir, "Counter.sol", []byte("contract Counter {}"))

	config, err := NewCompilationConfigFromPlatformConfig(platforms.NewSolcCompilationConfig(source))
	require.NoError(t, err)
	first, err := ComputeCacheKey(config)
	require.NoError(t, err)
	again, err := ComputeCacheKey(config)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// Build outputs do not affect the key.
	testutils.WriteFile(t, dir, "target/ink/out.wasm", []byte{0x00})
	again, err = ComputeCacheKey(config)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	testutils.WriteFile(t, dir, "Counter.sol", []byte("contract Counter { uint x; }"))
	changed, err := ComputeCacheKey(config)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	unoptimized := platforms.NewSolcCompilationConfig(source)
	unoptimized.Optimize = false
	config, err = NewCompilationConfigFromPlatformConfig(unoptimized)
	require.NoError(t, err)
	other, err := ComputeCacheKey(config)
	require.NoError(t, err)
	assert.NotEqual(t, changed, other)
}

// TestCompileWithCacheHit returns a cached artifact without invoking any compiler.
func TestCompileWithCacheHit(t *testing.T) {
	dir := t.TempDir()
	source := testutils.WriteFile(t, dir, "Counter.sol", []byte("contract Counter {}"))
	config, err := NewCompilationConfigFromPlatformConfig(platforms.NewSolcCompilationConfig(source))
	require.NoError(t, err)

	cache, err := OpenArtifactCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	key, err := ComputeCacheKey(config)
	require.NoError(t, err)
	artifact, err := types.NewEVMArtifact("Counter", []byte{0x60, 0x80}, []byte(counterABI))
	require.NoError(t, err)
	require.NoError(t, cache.Put(key, artifact))

	logger := logging.NewLogger(zerolog.Disabled, false)
	loaded, _, err := CompileWithCache(config, cache, logger)
	require.NoError(t, err)
	assert.Equal(t, artifact.Code, loaded.Code)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30 seconds"},
		{1 * time.Minute, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
		{24 * time.Hour, "1 day"},
		{72 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
