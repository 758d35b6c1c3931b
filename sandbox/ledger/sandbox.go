package ledger

import (
	"context"
	"math/big"

	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/sandbox"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config configures a ledger Sandbox. The zero value of every field selects its default.
type Config struct {
	// Accounts are funded at construction. Defaults to the ledger dev accounts.
	Accounts *accounts.Set[accounts.AccountID]

	// FundingAmount is minted into every account. Defaults to accounts.FundingAmount.
	FundingAmount *big.Int

	// DebugOutput collects contract debug messages and logs at debug level instead of warn level.
	DebugOutput bool

	// Schedule configures the default engine. Defaults to DefaultSchedule.
	Schedule *Schedule

	// Engine replaces the default WasmEngine.
	Engine Engine

	// Logger is the parent logger. Defaults to logging.GlobalLogger.
	Logger *logging.Logger
}

// Sandbox is an isolated, pre-funded ledger runtime in which contracts are deployed and called. It is not safe for
// concurrent use. Benchmarks running in parallel create one Sandbox per worker.
type Sandbox struct {
	id       uuid.UUID
	engine   Engine
	accounts *accounts.Set[accounts.AccountID]
	debug    bool
	logger   *logging.Logger
}

var _ sandbox.ContractSandbox[accounts.AccountID, CreateArgs, CallArgs] = (*Sandbox)(nil)

// NewSandbox creates the engine and funds every configured account. A sandbox whose accounts could not be funded is
// unusable, so funding failures are returned and no sandbox is created.
func NewSandbox(config Config) (*Sandbox, error) {
	id := uuid.New()
	parent := config.Logger
	if parent == nil {
		parent = logging.GlobalLogger
	}
	logger := parent.NewSubLogger("sandbox", "ledger-"+id.String()[:8])
	if !config.DebugOutput && logger.Level() < zerolog.WarnLevel {
		logger.SetLevel(zerolog.WarnLevel)
	}

	set := config.Accounts
	if set == nil {
		var err error
		if set, err = accounts.LedgerDevAccounts(); err != nil {
			return nil, err
		}
	}
	amount := config.FundingAmount
	if amount == nil {
		amount = new(big.Int).SetUint64(accounts.FundingAmount)
	}

	engine := config.Engine
	if engine == nil {
		schedule := DefaultSchedule()
		if config.Schedule != nil {
			schedule = *config.Schedule
		}
		wasmEngine, err := NewWasmEngine(context.Background(), schedule)
		if err != nil {
			return nil, errors.Wrap(err, "could not initialize the ledger engine")
		}
		engine = wasmEngine
	}

	s := &Sandbox{id: id, engine: engine, accounts: set, debug: config.DebugOutput, logger: logger}
	for _, account := range set.All() {
		if _, err := s.MintInto(account.ID, amount); err != nil {
			_ = engine.Close(context.Background())
			return nil, err
		}
	}
	logger.Debug("Funded ", set.Len(), " accounts with ", amount.String(), " each")
	return s, nil
}

// ID returns the unique identifier of this sandbox instance.
func (s *Sandbox) ID() uuid.UUID {
	return s.id
}

// Accounts returns the funded account set.
func (s *Sandbox) Accounts() *accounts.Set[accounts.AccountID] {
	return s.accounts
}

// Close releases the engine.
func (s *Sandbox) Close() error {
	return s.engine.Close(context.Background())
}

// MintInto adds amount to the free balance of account and returns the new balance.
func (s *Sandbox) MintInto(account accounts.AccountID, amount *big.Int) (*big.Int, error) {
	balance, err := s.engine.Mint(account, amount)
	if err != nil {
		return nil, &FundingError{Account: account, Err: err}
	}
	return balance, nil
}

// FreeBalance returns the free balance of account.
func (s *Sandbox) FreeBalance(account accounts.AccountID) *big.Int {
	return s.engine.FreeBalance(account)
}

// logDebugMessage surfaces contract debug output as a diagnostic.
func (s *Sandbox) logDebugMessage(operation string, message []byte) {
	if len(message) > 0 {
		s.logger.Debug(colors.Bold, operation, " debug output: ", colors.Reset, string(message))
	}
}

// InstantiateWithCode uploads the code, runs the constructor and returns the new contract's account. Engine
// rejections and constructor reverts are both reported as DeployError. Constructor input without a selector is an
// EncodingError.
func (s *Sandbox) InstantiateWithCode(args CreateArgs) (accounts.AccountID, error) {
	if args.Data != nil && args.Data.Selector().IsZero() {
		return accounts.AccountID{}, sandbox.NewEncodingError("constructor", errNoSelector)
	}
	gasLimit := DefaultGasLimit
	if args.GasLimit != nil {
		gasLimit = *args.GasLimit
	}
	result := s.engine.Instantiate(context.Background(), InstantiateRequest{
		Origin:              args.Origin,
		Value:               zeroIfNil(args.Value),
		GasLimit:            gasLimit,
		StorageDepositLimit: args.StorageDepositLimit,
		Code:                args.Code,
		Data:                args.input(),
		Salt:                args.Salt,
		Debug:               s.debug,
	})
	s.logDebugMessage("instantiate", result.DebugMessage)

	if result.Err != nil {
		s.logger.Warn("Instantiation failed: ", result.Err.Error())
		return accounts.AccountID{}, &DeployError{Dispatch: result.Err}
	}
	if result.Return.DidRevert() {
		s.logger.Warn("Constructor reverted")
		return accounts.AccountID{}, &DeployError{Data: result.Return.Data}
	}
	s.logger.Debug("Instantiated contract ", result.Account.String(), " using ", result.GasConsumed.RefTime, " ref time")
	return result.Account, nil
}

// Deploy is InstantiateWithCode.
func (s *Sandbox) Deploy(args CreateArgs) (accounts.AccountID, error) {
	return s.InstantiateWithCode(args)
}

// CallResult calls a contract and returns the raw engine result along with the classified error. A call only
// succeeds if it was dispatched and the contract did not set the revert flag. Input without a selector is an
// EncodingError and is never dispatched.
func (s *Sandbox) CallResult(args CallArgs) (ExecResult, error) {
	if args.Input.Selector().IsZero() {
		return ExecResult{StorageDeposit: new(big.Int)}, sandbox.NewEncodingError("call", errNoSelector)
	}
	gasLimit := DefaultGasLimit
	if args.GasLimit != nil {
		gasLimit = *args.GasLimit
	}
	result := s.engine.Call(context.Background(), CallRequest{
		Origin:              args.Origin,
		Dest:                args.Dest,
		Value:               zeroIfNil(args.Value),
		GasLimit:            gasLimit,
		StorageDepositLimit: args.StorageDepositLimit,
		Data:                args.Input.Bytes(),
		Debug:               s.debug,
	})
	s.logDebugMessage("call", result.DebugMessage)

	if result.Err != nil {
		return result, &CallError{Reason: CallDispatch, Dispatch: result.Err}
	}
	if result.Return.DidRevert() {
		return result, &CallError{Reason: CallReverted, Data: result.Return.Data}
	}
	return result, nil
}

// Call calls a contract and returns its output.
func (s *Sandbox) Call(args CallArgs) ([]byte, error) {
	result, err := s.CallResult(args)
	if err != nil {
		return nil, err
	}
	return result.Return.Data, nil
}
