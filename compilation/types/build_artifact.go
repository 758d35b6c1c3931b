package types

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// BuildArtifact is the normalized output of an external compiler for one contract: the code blob plus the interface
// table for the backend it targets. Artifacts are immutable and may be shared by many sandbox instances.
type BuildArtifact struct {
	// Backend is the runtime the code targets.
	Backend Backend

	// ContractName is the name of the compiled contract.
	ContractName string

	// SourcePath is the path of the source (file or crate directory) the artifact was built from.
	SourcePath string

	// Compiler is the platform that produced the artifact, e.g. "ink", "solang" or "solc".
	Compiler string

	// CompilerVersion is the version reported by the compiler, if known.
	CompilerVersion string

	// Code is the deployable code blob: Wasm for the ledger backend, init bytecode for the EVM backend.
	Code []byte

	// InterfaceJSON is the raw interface description the tables below were parsed from.
	InterfaceJSON []byte

	ledger *InterfaceTable
	evm    *EVMInterface
}

// NewLedgerArtifact creates an artifact for the ledger backend from Wasm code and contract metadata.
func NewLedgerArtifact(contractName string, code []byte, metadata []byte) (*BuildArtifact, error) {
	table, err := ParseInterfaceTable(metadata)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		embedded, ok := table.EmbeddedCode()
		if !ok {
			return nil, errors.Wrapf(ErrArtifactMissing, "no code blob for contract '%s'", contractName)
		}
		code = embedded
	}
	if contractName == "" {
		contractName = table.ContractName
	}
	return &BuildArtifact{
		Backend:       BackendLedger,
		ContractName:  contractName,
		Code:          bytes.Clone(code),
		InterfaceJSON: bytes.Clone(metadata),
		ledger:        table,
	}, nil
}

// NewEVMArtifact creates an artifact for the EVM backend from init bytecode and a JSON ABI.
func NewEVMArtifact(contractName string, initCode []byte, abiJSON []byte) (*BuildArtifact, error) {
	if len(initCode) == 0 {
		return nil, errors.Wrapf(ErrArtifactMissing, "no bytecode for contract '%s'", contractName)
	}
	iface, err := ParseEVMInterface(abiJSON)
	if err != nil {
		return nil, err
	}
	return &BuildArtifact{
		Backend:       BackendEVM,
		ContractName:  contractName,
		Code:          bytes.Clone(initCode),
		InterfaceJSON: bytes.Clone(abiJSON),
		evm:           iface,
	}, nil
}

// Restore reparses the interface description of an artifact that was decoded from storage.
func (b *BuildArtifact) Restore() error {
	switch b.Backend {
	case BackendLedger:
		table, err := ParseInterfaceTable(b.InterfaceJSON)
		if err != nil {
			return err
		}
		b.ledger = table
	case BackendEVM:
		iface, err := ParseEVMInterface(b.InterfaceJSON)
		if err != nil {
			return err
		}
		b.evm = iface
	default:
		return errors.Errorf("artifact for '%s' has unknown backend '%s'", b.ContractName, b.Backend)
	}
	return nil
}

// LedgerInterface returns the selector table of a ledger artifact.
func (b *BuildArtifact) LedgerInterface() (*InterfaceTable, error) {
	if b.Backend != BackendLedger || b.ledger == nil {
		return nil, errors.Wrapf(ErrBackendMismatch, "'%s' is a %s artifact", b.ContractName, b.Backend)
	}
	return b.ledger, nil
}

// EVMInterface returns the function table of an EVM artifact.
func (b *BuildArtifact) EVMInterface() (*EVMInterface, error) {
	if b.Backend != BackendEVM || b.evm == nil {
		return nil, errors.Wrapf(ErrBackendMismatch, "'%s' is a %s artifact", b.ContractName, b.Backend)
	}
	return b.evm, nil
}

// ConstructorSelector looks up a ledger constructor selector by name.
func (b *BuildArtifact) ConstructorSelector(name string) (Selector, error) {
	table, err := b.LedgerInterface()
	if err != nil {
		return Selector{}, err
	}
	return table.ConstructorSelector(name)
}

// MessageSelector looks up a ledger message selector by name.
func (b *BuildArtifact) MessageSelector(name string) (Selector, error) {
	table, err := b.LedgerInterface()
	if err != nil {
		return Selector{}, err
	}
	return table.MessageSelector(name)
}

// CodeHash returns the blake2b-256 hash of the code blob as hex. It identifies identical builds across backends.
func (b *BuildArtifact) CodeHash() string {
	sum := blake2b.Sum256(b.Code)
	return "0x" + hex.EncodeToString(sum[:])
}
