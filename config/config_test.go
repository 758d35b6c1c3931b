package config

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/schlau/accounts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnmarshalAmounts tests the unmarshalling of an Amount from a string
func TestUnmarshalAmounts(t *testing.T) {
	testCases := []struct {
		input    string
		expected *big.Int
	}{
		{"\"\"", big.NewInt(0)},
		{"\"1\"", big.NewInt(1)},
		{"\"100\"", big.NewInt(100)},
		{"\"1e5\"", big.NewInt(100000)},
		{"\"10E-1\"", big.NewInt(1)},
		{"\"0x1337\"", big.NewInt(4919)},
		{"\"0X10\"", big.NewInt(16)},
		{"\"1000000000000000\"", new(big.Int).SetUint64(accounts.FundingAmount)},
	}
	for _, tc := range testCases {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(tc.input), &a), tc.input)
		assert.Equal(t, 0, a.Int().Cmp(tc.expected), tc.input)
	}

	for _, input := range []string{"\"-1\"", "\"1.5\"", "\"0xzz\"", "\"abc\"", "5"} {
		var a Amount
		assert.Error(t, json.Unmarshal([]byte(input), &a), input)
	}
}

// TestMarshalAmounts tests the marshalling of an Amount to a decimal string
func TestMarshalAmounts(t *testing.T) {
	large := new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(1_000_000_000_000_000_000))
	out, err := json.Marshal(NewAmount(large))
	require.NoError(t, err)
	assert.Equal(t, "\"1000000000000000000000000000000000000\"", string(out))

	out, err = json.Marshal(NewAmountFromUint64(0))
	require.NoError(t, err)
	assert.Equal(t, "\"0\"", string(out))

	var nilAmount *Amount
	assert.Equal(t, "0", nilAmount.String())
}

// TestAmountRanges checks the ledger and 256-bit range checks.
func TestAmountRanges(t *testing.T) {
	assert.True(t, NewAmount(maxLedgerBalance).FitsLedgerBalance())
	tooLarge := NewAmount(new(big.Int).Add(maxLedgerBalance, big.NewInt(1)))
	assert.False(t, tooLarge.FitsLedgerBalance())
	_, err := tooLarge.Uint256()
	assert.NoError(t, err)

	_, err = NewAmount(new(big.Int).Lsh(big.NewInt(1), 256)).Uint256()
	assert.Error(t, err)
}

// TestProjectConfigRoundTrip writes the default configuration and reads it back.
func TestProjectConfigRoundTrip(t *testing.T) {
	for _, platform := range []string{"ink", "solang", "solc"} {
		projectConfig, err := GetDefaultProjectConfig(platform)
		require.NoError(t, err)
		projectConfig.Sandbox.FundingAmount = NewAmountFromUint64(accounts.FundingAmount * 10)
		require.NoError(t, projectConfig.Validate(), platform)

		path := filepath.Join(t.TempDir(), DefaultProjectConfigFilename)
		require.NoError(t, projectConfig.WriteToFile(path))
		read, err := ReadProjectConfigFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, projectConfig.Compilation.Platform, read.Compilation.Platform)
		assert.Equal(t, projectConfig.Workloads, read.Workloads)
		assert.Equal(t, projectConfig.Sandbox.FundingAmount.String(), read.Sandbox.FundingAmount.String())
		assert.Equal(t, zerolog.InfoLevel, read.Logging.Level)
		require.NoError(t, read.Validate())
	}
}

// TestReadPartialConfig checks that fields missing from a file keep their defaults.
func TestReadPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultProjectConfigFilename)
	content := `{"compilation": {"platform": "solc", "platformConfig": {"target": "Computation.sol"}},
		"workloads": [{"name": "w", "message": "triangle_number", "iterations": 3,
			"args": [{"type": "int64", "value": "10"}]}]}`
	require.NoError(t, writeFile(path, content))

	projectConfig, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ".schlau", projectConfig.Sandbox.CacheDirectory)
	assert.Equal(t, zerolog.InfoLevel, projectConfig.Logging.Level)
	require.Len(t, projectConfig.Workloads, 1)
	assert.Equal(t, "alice", projectConfig.Workloads[0].CallerName())
	require.NoError(t, projectConfig.Validate())

	_, err = ReadProjectConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	require.NoError(t, writeFile(path, "{"))
	_, err = ReadProjectConfigFromFile(path)
	assert.Error(t, err)
}

// TestValidate checks that invalid configurations are rejected.
func TestValidate(t *testing.T) {
	valid := func(platform string) *ProjectConfig {
		projectConfig, err := GetDefaultProjectConfig(platform)
		require.NoError(t, err)
		return projectConfig
	}

	testCases := []struct {
		name   string
		modify func(p *ProjectConfig)
	}{
		{"no compilation", func(p *ProjectConfig) { p.Compilation = nil }},
		{"unknown platform", func(p *ProjectConfig) { p.Compilation.Platform = "truffle" }},
		{"low funding", func(p *ProjectConfig) { p.Sandbox.FundingAmount = NewAmountFromUint64(1) }},
		{"ledger funding overflow", func(p *ProjectConfig) {
			p.Sandbox.FundingAmount = NewAmount(new(big.Int).Lsh(big.NewInt(1), 128))
		}},
		{"empty name", func(p *ProjectConfig) { p.Workloads[0].Name = "" }},
		{"duplicate name", func(p *ProjectConfig) { p.Workloads = append(p.Workloads, p.Workloads[0]) }},
		{"no message", func(p *ProjectConfig) { p.Workloads[0].Message = "" }},
		{"no iterations", func(p *ProjectConfig) { p.Workloads[0].Iterations = 0 }},
		{"no constructor", func(p *ProjectConfig) { p.Workloads[0].Constructor = "" }},
		{"unknown caller", func(p *ProjectConfig) { p.Workloads[0].Caller = "mallory" }},
		{"bad argument", func(p *ProjectConfig) { p.Workloads[0].Args[0].Value = "x" }},
		{"bad constructor argument", func(p *ProjectConfig) {
			p.Workloads[0].ConstructorArgs = []ArgumentConfig{{Type: "float", Value: "1"}}
		}},
	}
	for _, tc := range testCases {
		projectConfig := valid("ink")
		require.NoError(t, projectConfig.Validate())
		tc.modify(projectConfig)
		assert.Error(t, projectConfig.Validate(), tc.name)
	}

	// EVM workloads need no constructor name and may use the default account.
	projectConfig := valid("solc")
	projectConfig.Workloads[0].Caller = accounts.DefaultEVMAccountName
	projectConfig.Sandbox.FundingAmount = NewAmount(new(big.Int).Lsh(big.NewInt(1), 128))
	assert.NoError(t, projectConfig.Validate())
}

func writeFile(path string, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
