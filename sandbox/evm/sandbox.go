package evm

import (
	"math/big"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/rawdb"
	gethState "github.com/crytic/medusa-geth/core/state"
	"github.com/crytic/medusa-geth/core/tracing"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/medusa-geth/params"
	"github.com/crytic/medusa-geth/triedb"
	"github.com/crytic/medusa-geth/triedb/hashdb"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/utils"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// DefaultAccountBalance is the genesis balance of accounts.DefaultEVMAccount: half the 256-bit range, so minting
// into it cannot overflow in practice.
var DefaultAccountBalance = new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 1)

// DefaultDevAccountBalance is the genesis balance of every other account. Buying the default gas limit at the
// minimum gas price costs 10^18, so dev accounts get far more than accounts.FundingAmount.
var DefaultDevAccountBalance = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(30))

// Config configures an EVM Sandbox. The zero value of every field selects its default.
type Config struct {
	// Accounts are funded at genesis. Defaults to accounts.EVMDevAccounts.
	Accounts *accounts.Set[common.Address]

	// FundingAmount is the genesis balance of every account except accounts.DefaultEVMAccount. Defaults to
	// DefaultDevAccountBalance.
	FundingAmount *uint256.Int

	// CodeSizeCheckDisabled lifts the contract code size limit, for deploying unoptimized contracts.
	CodeSizeCheckDisabled bool

	// Logger is the parent logger. Defaults to logging.GlobalLogger.
	Logger *logging.Logger
}

// Result is the outcome of a create or call that was accepted by the engine.
type Result struct {
	// Exit is the engine's exit reason.
	Exit ExitReason

	// ReturnData is the call output, or the deployed runtime code of a create.
	ReturnData []byte

	// GasUsed is the gas consumed after refunds.
	GasUsed uint64

	// ContractAddress is the address of the contract a create deployed.
	ContractAddress common.Address

	// Logs are the events emitted by a successful execution.
	Logs []*gethTypes.Log
}

// Sandbox is an isolated, pre-funded EVM in which contracts are deployed and called. Every create and call executes
// as its own block on top of the previous state. It is not safe for concurrent use.
type Sandbox struct {
	id     uuid.UUID
	logger *logging.Logger

	chainConfig *params.ChainConfig
	vmConfig    vm.Config
	trieDB      *triedb.Database
	state       *gethState.StateDB

	blockNumber uint64
	blockTime   uint64

	accounts *accounts.Set[common.Address]

	// abis resolve revert reasons and events of contracts deployed through DeployContract.
	abis map[common.Address]*abi.ABI
}

var _ sandbox.ContractSandbox[common.Address, CreateArgs, CallArgs] = (*Sandbox)(nil)

// NewSandbox commits a genesis block funding the configured accounts and opens its state. The default account
// receives DefaultAccountBalance regardless of FundingAmount.
func NewSandbox(config Config) (*Sandbox, error) {
	id := uuid.New()
	parent := config.Logger
	if parent == nil {
		parent = logging.GlobalLogger
	}
	logger := parent.NewSubLogger("sandbox", "evm-"+id.String()[:8])

	set := config.Accounts
	if set == nil {
		set = accounts.EVMDevAccounts()
	}
	amount := config.FundingAmount
	if amount == nil {
		amount = DefaultDevAccountBalance
	}
	if amount.Cmp(uint256.NewInt(accounts.FundingAmount)) < 0 {
		logger.Warn("Funding amount ", amount.Dec(), " is below the minimum of ", accounts.FundingAmount)
	}

	alloc := make(map[common.Address]*big.Int, set.Len()+1)
	alloc[accounts.DefaultEVMAccount] = DefaultAccountBalance.ToBig()
	for _, account := range set.All() {
		if account.ID != accounts.DefaultEVMAccount {
			alloc[account.ID] = amount.ToBig()
		}
	}

	chainConfig, err := newChainConfig()
	if err != nil {
		return nil, errors.Wrap(err, "could not create the chain configuration")
	}
	genesis := newGenesis(chainConfig, alloc)

	db := rawdb.NewMemoryDatabase()
	trieDB := triedb.NewDatabase(db, &triedb.Config{HashDB: hashdb.Defaults})
	genesisBlock := genesis.MustCommit(db, trieDB)
	state, err := gethState.New(genesisBlock.Root(), gethState.NewDatabase(trieDB, nil))
	if err != nil {
		_ = trieDB.Close()
		return nil, errors.Wrap(err, "could not open the genesis state")
	}

	s := &Sandbox{
		id:          id,
		logger:      logger,
		chainConfig: chainConfig,
		vmConfig: vm.Config{
			NoBaseFee: true,
			ConfigExtensions: &vm.ConfigExtensions{
				OverrideCodeSizeCheck:    config.CodeSizeCheckDisabled,
				AdditionalPrecompiles:    make(map[common.Address]vm.PrecompiledContract),
				ContractAddressOverrides: make(map[common.Hash]common.Address),
			},
		},
		trieDB:      trieDB,
		state:       state,
		blockNumber: genesisBlock.NumberU64(),
		blockTime:   genesisBlock.Time(),
		accounts:    set,
		abis:        make(map[common.Address]*abi.ABI),
	}
	logger.Debug("Committed genesis block ", colors.Bold, genesisBlock.Hash().Hex(), colors.Reset, " funding ", len(alloc), " accounts")
	return s, nil
}

// ID returns the unique identifier of this sandbox instance.
func (s *Sandbox) ID() uuid.UUID {
	return s.id
}

// Accounts returns the funded account set.
func (s *Sandbox) Accounts() *accounts.Set[common.Address] {
	return s.accounts
}

// Close releases the trie database caches.
func (s *Sandbox) Close() error {
	return s.trieDB.Close()
}

// MintInto adds amount to the balance of account and returns the new balance.
func (s *Sandbox) MintInto(account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	balance, overflow := new(uint256.Int).AddOverflow(s.state.GetBalance(account), amount)
	if overflow {
		return nil, &FundingError{Account: account, Err: errors.New("balance overflows 256 bits")}
	}
	s.state.AddBalance(account, amount, tracing.BalanceChangeUnspecified)
	s.state.Finalise(true)
	return balance, nil
}

// FreeBalance returns the balance of account.
func (s *Sandbox) FreeBalance(account common.Address) *uint256.Int {
	return s.state.GetBalance(account).Clone()
}

// Nonce returns the nonce of account.
func (s *Sandbox) Nonce(account common.Address) uint64 {
	return s.state.GetNonce(account)
}

// Code returns the runtime code deployed at address.
func (s *Sandbox) Code(address common.Address) []byte {
	return common.CopyBytes(s.state.GetCode(address))
}

// apply executes msg in a new block. A message that fails validation leaves the state untouched.
func (s *Sandbox) apply(msg *core.Message) (*core.ExecutionResult, []*gethTypes.Log, error) {
	s.blockNumber++
	s.blockTime++
	blockCtx := blockContext(s.blockNumber, s.blockTime)

	tx := utils.MessageToTransaction(s.chainConfig.ChainID, msg)
	s.state.SetTxContext(tx.Hash(), 0)

	snapshot := s.state.Snapshot()
	evm := vm.NewEVM(blockCtx, s.state, s.chainConfig, s.vmConfig)
	evm.SetTxContext(core.NewEVMTxContext(msg))
	gasPool := new(core.GasPool).AddGas(blockCtx.GasLimit)

	result, err := core.ApplyMessage(evm, msg, gasPool)
	if err != nil {
		s.state.RevertToSnapshot(snapshot)
		return nil, nil, err
	}
	s.state.Finalise(true)
	logs := s.state.GetLogs(tx.Hash(), s.blockNumber, common.Hash{})
	return result, logs, nil
}

// message builds the core.Message for an operation.
func (s *Sandbox) message(from common.Address, to *common.Address, value *uint256.Int, data []byte, f fees) *core.Message {
	nonce := s.state.GetNonce(from)
	if f.Nonce != nil {
		nonce = *f.Nonce
	}
	maxFee := f.maxFeePerGas().ToBig()
	if value == nil {
		value = new(uint256.Int)
	}
	return &core.Message{
		To:         to,
		From:       from,
		Nonce:      nonce,
		Value:      value.ToBig(),
		GasLimit:   f.gasLimit(),
		GasPrice:   maxFee,
		GasFeeCap:  maxFee,
		GasTipCap:  f.maxPriorityFeePerGas().ToBig(),
		Data:       data,
		AccessList: f.AccessList,
	}
}

// execute applies msg and classifies its exit reason.
func (s *Sandbox) execute(msg *core.Message) Result {
	result, logs, err := s.apply(msg)
	exit := exitReason(result, err)
	if err != nil {
		return Result{Exit: exit}
	}
	return Result{Exit: exit, ReturnData: result.ReturnData, GasUsed: result.UsedGas, Logs: logs}
}

// failure builds the diagnostic description of an unsuccessful result.
func (s *Sandbox) failure(result Result, contractAbi *abi.ABI) Failure {
	return Failure{
		Exit:         result.Exit,
		ReturnData:   result.ReturnData,
		GasUsed:      result.GasUsed,
		RevertReason: RevertReason(contractAbi, result.Exit.Err, result.ReturnData),
	}
}

// CreateResult deploys init code and returns the engine result along with the classified error. The contract
// address is derived from the deployer and its nonce.
func (s *Sandbox) CreateResult(args CreateArgs) (Result, error) {
	msg := s.message(args.Source, nil, args.Value, args.input(), args.fees)
	address := crypto.CreateAddress(args.Source, msg.Nonce)

	result := s.execute(msg)
	if !result.Exit.Succeeded() {
		createErr := &CreateError{Failure: s.failure(result, nil)}
		s.logger.Warn("Contract creation failed: ", createErr.Diagnostics())
		return result, createErr
	}
	result.ContractAddress = address
	s.logger.Debug("Deployed contract ", address.Hex(), " using ", result.GasUsed, " gas")
	return result, nil
}

// Create deploys init code and returns the address of the new contract.
func (s *Sandbox) Create(args CreateArgs) (common.Address, error) {
	result, err := s.CreateResult(args)
	if err != nil {
		return common.Address{}, err
	}
	return result.ContractAddress, nil
}

// Deploy is Create.
func (s *Sandbox) Deploy(args CreateArgs) (common.Address, error) {
	return s.Create(args)
}

// DeployContract deploys init code and remembers contractAbi, so revert reasons of later calls can be decoded
// against its custom errors.
func (s *Sandbox) DeployContract(args CreateArgs, contractAbi *abi.ABI) (common.Address, error) {
	address, err := s.Create(args)
	if err != nil {
		return address, err
	}
	if contractAbi != nil {
		s.abis[address] = contractAbi
	}
	return address, nil
}

// CallResult calls a contract and returns the engine result along with the classified error. Only an ExitSucceed
// exit reason is a success. Calldata that was never packed is rejected before anything is executed.
func (s *Sandbox) CallResult(args CallArgs) (Result, error) {
	if args.Input.IsEmpty() {
		return Result{}, sandbox.NewEncodingError("call to "+args.Dest.Hex(), errors.New("calldata was not packed against an interface"))
	}
	dest := args.Dest
	msg := s.message(args.Source, &dest, args.Value, args.Input.Bytes(), args.fees)

	result := s.execute(msg)
	if !result.Exit.Succeeded() {
		callErr := &CallError{Failure: s.failure(result, s.abis[dest])}
		if result.Exit.Kind == ExitFatal {
			s.logger.Warn("Call was not executed: ", callErr.Diagnostics())
		} else {
			s.logger.Debug("Call failed: ", callErr.Diagnostics())
		}
		return result, callErr
	}
	return result, nil
}

// Call calls a contract and returns its output.
func (s *Sandbox) Call(args CallArgs) ([]byte, error) {
	result, err := s.CallResult(args)
	if err != nil {
		return nil, err
	}
	return result.ReturnData, nil
}
