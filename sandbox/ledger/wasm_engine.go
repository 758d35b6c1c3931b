package ledger

import (
	"bytes"
	"context"
	"math/big"
	"time"

	"github.com/crytic/schlau/accounts"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"golang.org/x/crypto/blake2b"
)

// Schedule holds the metering costs and limits of the WasmEngine.
type Schedule struct {
	// InstantiateBase is charged for every instantiation.
	InstantiateBase Weight
	// CallBase is charged for every call.
	CallBase Weight
	// CodeByte is charged per byte of uploaded code.
	CodeByte Weight
	// HostFunction is charged for every host function invocation.
	HostFunction Weight
	// ByteCopy is the ref time charged per byte moved between the contract and the host or hashed.
	ByteCopy uint64
	// StorageRead is charged per storage lookup, plus ByteCopy and proof size per value byte.
	StorageRead Weight
	// StorageWrite is charged per storage write or removal.
	StorageWrite Weight

	MaxCodeLen       int
	MaxMemoryPages   uint32
	MaxStorageKeyLen uint32
	MaxValueSize     uint32
	MaxEventTopics   int

	// MaxExecutionTime bounds the wall time of one entry point execution, since Wasm instructions are not metered.
	// Zero disables the bound.
	MaxExecutionTime time.Duration

	// DepositPerItem is reserved per storage item.
	DepositPerItem *big.Int
	// DepositPerByte is reserved per byte of storage key and value, and per byte of uploaded code.
	DepositPerByte *big.Int
	// ExistentialDeposit is the minimum balance, reserved when a contract account is created.
	ExistentialDeposit *big.Int
}

// DefaultSchedule returns the costs and limits the sandbox runs with.
func DefaultSchedule() Schedule {
	return Schedule{
		InstantiateBase:    Weight{RefTime: 300_000_000, ProofSize: 16_384},
		CallBase:           Weight{RefTime: 100_000_000, ProofSize: 8_192},
		CodeByte:           Weight{RefTime: 10_000, ProofSize: 1},
		HostFunction:       Weight{RefTime: 500_000},
		ByteCopy:           1_000,
		StorageRead:        Weight{RefTime: 25_000_000, ProofSize: 128},
		StorageWrite:       Weight{RefTime: 50_000_000, ProofSize: 128},
		MaxCodeLen:         256 * 1024,
		MaxMemoryPages:     16,
		MaxStorageKeyLen:   128,
		MaxValueSize:       16 * 1024,
		MaxEventTopics:     4,
		MaxExecutionTime:   time.Minute,
		DepositPerItem:     big.NewInt(2_000),
		DepositPerByte:     big.NewInt(1),
		ExistentialDeposit: big.NewInt(1_000_000),
	}
}

// codeInfo is compiled contract code.
type codeInfo struct {
	hash     [32]byte
	compiled wazero.CompiledModule
	memory   memoryLimits
	stored   bool
}

// WasmEngine executes ledger contracts compiled to Wasm on wazero. Contracts import their memory from "env" and the
// host functions of the "seal0", "seal1" and "seal2" modules.
type WasmEngine struct {
	runtime  wazero.Runtime
	schedule Schedule

	// hostFunctions lists the exported names per host module, for import validation.
	hostFunctions map[string]map[string]bool

	codes         map[[32]byte]*codeInfo
	memoryModules map[memoryLimits]wazero.CompiledModule

	balances  map[accounts.AccountID]*big.Int
	contracts map[accounts.AccountID]*contractInfo
	storage   map[storageSlot][]byte

	blockNumber uint32
	timestamp   uint64
}

// NewWasmEngine creates an engine with empty state.
func NewWasmEngine(ctx context.Context, schedule Schedule) (*WasmEngine, error) {
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(schedule.MaxMemoryPages)

	e := &WasmEngine{
		runtime:       wazero.NewRuntimeWithConfig(ctx, runtimeConfig),
		schedule:      schedule,
		hostFunctions: make(map[string]map[string]bool),
		codes:         make(map[[32]byte]*codeInfo),
		memoryModules: make(map[memoryLimits]wazero.CompiledModule),
		balances:      make(map[accounts.AccountID]*big.Int),
		contracts:     make(map[accounts.AccountID]*contractInfo),
		storage:       make(map[storageSlot][]byte),
		blockNumber:   1,
		timestamp:     1_700_000_000_000,
	}
	if err := e.instantiateHostModules(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

// instantiateHostModules registers every host function under each of its names.
func (e *WasmEngine) instantiateHostModules(ctx context.Context) error {
	builders := make(map[string]wazero.HostModuleBuilder)
	var order []string
	for _, hf := range hostFunctionTable() {
		builder, ok := builders[hf.module]
		if !ok {
			builder = e.runtime.NewHostModuleBuilder(hf.module)
			builders[hf.module] = builder
			order = append(order, hf.module)
			e.hostFunctions[hf.module] = make(map[string]bool)
		}
		for _, name := range hf.names {
			builder.NewFunctionBuilder().WithFunc(hf.fn).Export(name)
			e.hostFunctions[hf.module][name] = true
		}
	}
	for _, module := range order {
		if _, err := builders[module].Instantiate(ctx); err != nil {
			return errors.Wrapf(err, "could not instantiate host module '%s'", module)
		}
	}
	return nil
}

// Close releases the wazero runtime and all compiled code.
func (e *WasmEngine) Close(ctx context.Context) error {
	return errors.WithStack(e.runtime.Close(ctx))
}

// Mint adds amount to the free balance of account.
func (e *WasmEngine) Mint(account accounts.AccountID, amount *big.Int) (*big.Int, error) {
	if err := validateBalance(amount); err != nil {
		return nil, err
	}
	balance := new(big.Int).Add(zeroIfNil(e.balances[account]), amount)
	if err := validateBalance(balance); err != nil {
		return nil, err
	}
	e.balances[account] = balance
	return new(big.Int).Set(balance), nil
}

// FreeBalance returns the free balance of account.
func (e *WasmEngine) FreeBalance(account accounts.AccountID) *big.Int {
	return new(big.Int).Set(zeroIfNil(e.balances[account]))
}

// compile validates and compiles code, caching the result by code hash. The returned string explains a rejection.
func (e *WasmEngine) compile(ctx context.Context, code []byte) (*codeInfo, string) {
	hash := blake2b.Sum256(code)
	if info, ok := e.codes[hash]; ok {
		return info, ""
	}

	if len(code) > e.schedule.MaxCodeLen {
		return nil, "code exceeds the maximum code length"
	}
	if err := checkDeterminism(code); err != nil {
		return nil, err.Error()
	}
	compiled, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, err.Error()
	}

	info := &codeInfo{hash: hash, compiled: compiled}
	if reason := e.validateModule(info); reason != "" {
		_ = compiled.Close(ctx)
		return nil, reason
	}
	e.codes[hash] = info
	return info, ""
}

// validateModule checks the exports, function imports and memory import of a compiled contract.
func (e *WasmEngine) validateModule(info *codeInfo) string {
	exports := info.compiled.ExportedFunctions()
	for _, entry := range []string{"deploy", "call"} {
		def, ok := exports[entry]
		if !ok {
			return "contract does not export '" + entry + "'"
		}
		if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
			return "'" + entry + "' must take no parameters and return nothing"
		}
	}

	for _, def := range info.compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if !e.hostFunctions[module][name] {
			return "contract imports unknown host function " + module + "." + name
		}
	}

	memories := info.compiled.ImportedMemories()
	if len(memories) != 1 {
		return "contract must import exactly one memory"
	}
	module, name, _ := memories[0].Import()
	if module != "env" || name != "memory" {
		return "contract must import its memory as env.memory"
	}
	limits := memoryLimits{min: memories[0].Min(), max: e.schedule.MaxMemoryPages}
	if max, ok := memories[0].Max(); ok {
		limits.max = max
	}
	if limits.max > e.schedule.MaxMemoryPages || limits.min > limits.max {
		return "contract memory limits exceed the maximum memory pages"
	}
	info.memory = limits
	return ""
}

// memoryModule returns the compiled "env" module for the given limits.
func (e *WasmEngine) memoryModule(ctx context.Context, limits memoryLimits) (wazero.CompiledModule, error) {
	if compiled, ok := e.memoryModules[limits]; ok {
		return compiled, nil
	}
	compiled, err := e.runtime.CompileModule(ctx, memoryModule(limits))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.memoryModules[limits] = compiled
	return compiled, nil
}

// execute runs an exported entry point of the contract with fresh memory. Host functions find the frame through the
// context. It returns the dispatch error if the contract trapped, a host function aborted it or it ran longer than
// MaxExecutionTime.
func (e *WasmEngine) execute(ctx context.Context, f *frame, info *codeInfo, entry string) *DispatchError {
	if e.schedule.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.schedule.MaxExecutionTime)
		defer cancel()
	}

	memory, err := e.memoryModule(ctx, info.memory)
	if err != nil {
		return newContractsError(ReasonCodeRejected)
	}
	env, err := e.runtime.InstantiateModule(ctx, memory, wazero.NewModuleConfig().WithName("env"))
	if err != nil {
		return newContractsError(ReasonContractTrapped)
	}
	defer env.Close(ctx)

	ctx = withFrame(ctx, f)
	module, err := e.runtime.InstantiateModule(ctx, info.compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		f.debugf("instantiation failed: %v", err)
		return newContractsError(ReasonContractTrapped)
	}
	defer module.Close(ctx)

	_, err = module.ExportedFunction(entry).Call(ctx)
	switch {
	case f.returned:
		return nil
	case f.trap != nil:
		return f.trap
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		f.debugf("execution exceeded %s", e.schedule.MaxExecutionTime)
		return newContractsError(ReasonExecutionTimeout)
	case err != nil:
		f.debugf("contract trapped: %v", err)
		return newContractsError(ReasonContractTrapped)
	default:
		// Falling off the end of the entry point is a successful return without output.
		return nil
	}
}

// contractAddress derives the address of a contract from its deployer, code, constructor input and salt.
func contractAddress(deployer accounts.AccountID, codeHash [32]byte, input []byte, salt []byte) accounts.AccountID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("contract_addr_v1"))
	h.Write(deployer[:])
	h.Write(codeHash[:])
	h.Write(input)
	h.Write(salt)
	var address accounts.AccountID
	copy(address[:], h.Sum(nil))
	return address
}

// Instantiate uploads code, creates the contract account and runs its "deploy" entry point.
func (e *WasmEngine) Instantiate(ctx context.Context, request InstantiateRequest) (result ExecResult) {
	result = ExecResult{StorageDeposit: new(big.Int)}
	f := newFrame(e, request.GasLimit, request.Debug)
	defer func() {
		result.GasConsumed = f.gas.used
		result.DebugMessage = f.debugMessage()
	}()

	codeCost := Weight{
		RefTime:   e.schedule.CodeByte.RefTime * uint64(len(request.Code)),
		ProofSize: e.schedule.CodeByte.ProofSize * uint64(len(request.Code)),
	}
	if !f.gas.charge(e.schedule.InstantiateBase.Add(codeCost)) {
		result.Err = newContractsError(ReasonOutOfGas)
		return result
	}

	info, reason := e.compile(ctx, request.Code)
	if info == nil {
		f.debugf("code rejected: %s", reason)
		result.Err = newContractsError(ReasonCodeRejected)
		return result
	}

	address := contractAddress(request.Origin, info.hash, request.Data, request.Salt)
	result.Account = address

	tx := e.begin()
	if _, exists := tx.contract(address); exists {
		result.Err = newContractsError(ReasonDuplicateContract)
		return result
	}
	tx.createContract(address, info.hash)
	tx.deposit.Add(tx.deposit, e.schedule.ExistentialDeposit)
	if !info.stored {
		tx.deposit.Add(tx.deposit, new(big.Int).Mul(big.NewInt(int64(len(request.Code))), e.schedule.DepositPerByte))
	}
	value := zeroIfNil(request.Value)
	if !tx.transfer(request.Origin, address, value) {
		result.Err = newContractsError(ReasonTransferFailed)
		return result
	}

	f.enter(tx, address, request.Origin, value, request.Data)
	if err := e.execute(ctx, f, info, "deploy"); err != nil {
		result.Err = err
		return result
	}
	result.Return = f.ret
	if f.ret.DidRevert() {
		return result
	}

	if err := tx.settleDeposit(request.Origin, address, request.StorageDepositLimit); err != nil {
		result.Err = err
		return result
	}
	result.StorageDeposit = new(big.Int).Set(tx.deposit)
	result.Events = tx.events
	tx.commit()
	info.stored = true
	return result
}

// Call runs the "call" entry point of a deployed contract.
func (e *WasmEngine) Call(ctx context.Context, request CallRequest) (result ExecResult) {
	result = ExecResult{StorageDeposit: new(big.Int)}
	f := newFrame(e, request.GasLimit, request.Debug)
	defer func() {
		result.GasConsumed = f.gas.used
		result.DebugMessage = f.debugMessage()
	}()

	if !f.gas.charge(e.schedule.CallBase) {
		result.Err = newContractsError(ReasonOutOfGas)
		return result
	}

	tx := e.begin()
	contract, ok := tx.contract(request.Dest)
	if !ok {
		result.Err = newContractsError(ReasonContractNotFound)
		return result
	}
	info := e.codes[contract.codeHash]

	value := zeroIfNil(request.Value)
	if !tx.transfer(request.Origin, request.Dest, value) {
		result.Err = newContractsError(ReasonTransferFailed)
		return result
	}

	f.enter(tx, request.Dest, request.Origin, value, request.Data)
	if err := e.execute(ctx, f, info, "call"); err != nil {
		result.Err = err
		return result
	}
	result.Return = f.ret
	if f.ret.DidRevert() {
		return result
	}

	if err := tx.settleDeposit(request.Origin, request.Dest, request.StorageDepositLimit); err != nil {
		result.Err = err
		return result
	}
	result.StorageDeposit = new(big.Int).Set(tx.deposit)
	result.Events = tx.events
	tx.commit()
	return result
}

// storageItem returns a committed storage item of a contract stored under a variable-length key.
func (e *WasmEngine) storageItem(contract accounts.AccountID, key []byte) ([]byte, bool) {
	value, ok := e.storage[storageSlot{contract: contract, key: hashedKey(key, false)}]
	return bytes.Clone(value), ok
}
