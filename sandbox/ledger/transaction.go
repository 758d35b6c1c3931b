package ledger

import (
	"math/big"

	"github.com/crytic/schlau/accounts"
	"golang.org/x/crypto/blake2b"
)

// contractInfo is the engine's record of a deployed contract.
type contractInfo struct {
	codeHash [32]byte

	// depositHeld is the storage deposit reserved by this contract.
	depositHeld *big.Int
}

// storageSlot addresses one storage item of one contract.
type storageSlot struct {
	contract accounts.AccountID
	key      string
}

// storageWrite is a pending storage change. A nil value deletes the item.
type storageWrite struct {
	value []byte
}

// transaction buffers all state changes of one top-level operation. Changes reach the engine only on commit, so a
// revert or trap rolls back balances, storage, new contracts and events alike.
type transaction struct {
	engine *WasmEngine

	balances  map[accounts.AccountID]*big.Int
	contracts map[accounts.AccountID]*contractInfo
	storage   map[storageSlot]storageWrite
	events    []Event

	// deposit is the net storage deposit incurred so far.
	deposit *big.Int
}

// begin starts a transaction against the engine's committed state.
func (e *WasmEngine) begin() *transaction {
	return &transaction{
		engine:    e,
		balances:  make(map[accounts.AccountID]*big.Int),
		contracts: make(map[accounts.AccountID]*contractInfo),
		storage:   make(map[storageSlot]storageWrite),
		deposit:   new(big.Int),
	}
}

// balance returns the free balance of an account. The result must not be mutated.
func (t *transaction) balance(account accounts.AccountID) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	if b, ok := t.engine.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (t *transaction) setBalance(account accounts.AccountID, balance *big.Int) {
	t.balances[account] = balance
}

// transfer moves value between free balances. It reports false if the sender cannot cover it or the recipient would
// exceed the maximum balance.
func (t *transaction) transfer(from accounts.AccountID, to accounts.AccountID, value *big.Int) bool {
	if value.Sign() == 0 {
		return true
	}
	if value.Sign() < 0 || t.balance(from).Cmp(value) < 0 {
		return false
	}
	credited := new(big.Int).Add(t.balance(to), value)
	if credited.Cmp(maxBalance) > 0 {
		return false
	}
	t.setBalance(from, new(big.Int).Sub(t.balance(from), value))
	t.setBalance(to, credited)
	return true
}

// contract returns the record of a deployed contract, including contracts created in this transaction.
func (t *transaction) contract(account accounts.AccountID) (*contractInfo, bool) {
	if info, ok := t.contracts[account]; ok {
		return info, true
	}
	info, ok := t.engine.contracts[account]
	return info, ok
}

// mutableContract returns a transaction-local copy of a contract record.
func (t *transaction) mutableContract(account accounts.AccountID) *contractInfo {
	if info, ok := t.contracts[account]; ok {
		return info
	}
	committed := t.engine.contracts[account]
	info := &contractInfo{codeHash: committed.codeHash, depositHeld: new(big.Int).Set(committed.depositHeld)}
	t.contracts[account] = info
	return info
}

func (t *transaction) createContract(account accounts.AccountID, codeHash [32]byte) {
	t.contracts[account] = &contractInfo{codeHash: codeHash, depositHeld: new(big.Int)}
}

// hashedKey maps a contract storage key to its slot. Fixed 32-byte keys are used as is. Variable-length keys are
// prefixed with their blake2-128 hash.
func hashedKey(key []byte, fixed bool) string {
	if fixed {
		return "f" + string(key)
	}
	h, _ := blake2b.New(16, nil)
	h.Write(key)
	return "v" + string(h.Sum(nil)) + string(key)
}

// getStorage reads a storage item.
func (t *transaction) getStorage(contract accounts.AccountID, key string) ([]byte, bool) {
	slot := storageSlot{contract: contract, key: key}
	if w, ok := t.storage[slot]; ok {
		return w.value, w.value != nil
	}
	value, ok := t.engine.storage[slot]
	return value, ok
}

// setStorage writes a storage item, or deletes it if value is nil, and accounts for the deposit change. It returns
// the size of the previous value and whether one existed.
func (t *transaction) setStorage(contract accounts.AccountID, key string, value []byte) (int, bool) {
	previous, existed := t.getStorage(contract, key)
	t.storage[storageSlot{contract: contract, key: key}] = storageWrite{value: value}

	schedule := t.engine.schedule
	itemBytes := func(v []byte) *big.Int {
		return new(big.Int).Mul(big.NewInt(int64(len(key)+len(v))), schedule.DepositPerByte)
	}
	switch {
	case !existed && value != nil:
		t.deposit.Add(t.deposit, schedule.DepositPerItem)
		t.deposit.Add(t.deposit, itemBytes(value))
	case existed && value == nil:
		t.deposit.Sub(t.deposit, schedule.DepositPerItem)
		t.deposit.Sub(t.deposit, itemBytes(previous))
	case existed:
		t.deposit.Add(t.deposit, itemBytes(value))
		t.deposit.Sub(t.deposit, itemBytes(previous))
	}
	return len(previous), existed
}

// emit records an event.
func (t *transaction) emit(event Event) {
	t.events = append(t.events, event)
}

// settleDeposit charges a positive net deposit to origin and reserves it on contract, or refunds a negative one from
// the contract's reserve. It returns the dispatch error if the limit or origin's balance does not allow the charge.
func (t *transaction) settleDeposit(origin accounts.AccountID, contract accounts.AccountID, limit *big.Int) *DispatchError {
	info := t.mutableContract(contract)
	switch t.deposit.Sign() {
	case 1:
		if limit != nil && t.deposit.Cmp(limit) > 0 {
			return newContractsError(ReasonStorageDepositLimitExhausted)
		}
		if t.balance(origin).Cmp(t.deposit) < 0 {
			return newContractsError(ReasonStorageDepositNotEnoughFunds)
		}
		t.setBalance(origin, new(big.Int).Sub(t.balance(origin), t.deposit))
		info.depositHeld = new(big.Int).Add(info.depositHeld, t.deposit)
	case -1:
		refund := new(big.Int).Neg(t.deposit)
		if refund.Cmp(info.depositHeld) > 0 {
			refund.Set(info.depositHeld)
		}
		info.depositHeld = new(big.Int).Sub(info.depositHeld, refund)
		t.setBalance(origin, new(big.Int).Add(t.balance(origin), refund))
	}
	return nil
}

// commit applies the transaction to the engine.
func (t *transaction) commit() {
	for account, balance := range t.balances {
		t.engine.balances[account] = balance
	}
	for account, info := range t.contracts {
		t.engine.contracts[account] = info
	}
	for slot, w := range t.storage {
		if w.value == nil {
			delete(t.engine.storage, slot)
		} else {
			t.engine.storage[slot] = w.value
		}
	}
}
