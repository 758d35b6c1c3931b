package platforms

import (
	"os"
	"path/filepath"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/utils"
	"github.com/pkg/errors"
)

// readArtifactFile reads a compiler output file, mapping its absence to types.ErrArtifactMissing.
func readArtifactFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(types.ErrArtifactMissing, "expected compiler output '%s' does not exist", path)
		}
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// LoadLedgerArtifact loads a ledger contract from a Wasm code file and its metadata (".json" or ".contract"). If
// wasmPath is empty, the code blob embedded in the metadata bundle is used.
func LoadLedgerArtifact(contractName string, wasmPath string, metadataPath string) (*types.BuildArtifact, error) {
	metadata, err := readArtifactFile(metadataPath)
	if err != nil {
		return nil, err
	}

	var code []byte
	if wasmPath != "" {
		if code, err = readArtifactFile(wasmPath); err != nil {
			return nil, err
		}
	}
	artifact, err := types.NewLedgerArtifact(contractName, code, metadata)
	if err != nil {
		return nil, err
	}
	artifact.SourcePath = metadataPath
	return artifact, nil
}

// LoadLedgerArtifactFromDirectory loads "<name>.wasm" and "<name>.contract" (or "<name>.json") from dir.
func LoadLedgerArtifactFromDirectory(dir string, contractName string) (*types.BuildArtifact, error) {
	wasmPath := filepath.Join(dir, contractName+".wasm")
	metadataPath := filepath.Join(dir, contractName+".contract")
	if !utils.FileExists(metadataPath) {
		metadataPath = filepath.Join(dir, contractName+".json")
	}
	if !utils.FileExists(wasmPath) {
		wasmPath = ""
	}
	return LoadLedgerArtifact(contractName, wasmPath, metadataPath)
}
