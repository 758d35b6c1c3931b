package accounts

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
)

// DefaultEVMAccountName names DefaultEVMAccount within EVM account sets.
const DefaultEVMAccountName = "default"

// DefaultEVMAccount is the EVM account funded with a maximal balance at genesis and used as the default caller.
var DefaultEVMAccount = common.BytesToAddress(common.FromHex("0x0101010101010101010101010101010101010101"))

// EVMDevAccount derives a deterministic 20-byte address for a dev account name from keccak256("schlau:" + name).
func EVMDevAccount(name string) Account[common.Address] {
	hash := crypto.Keccak256([]byte("schlau:" + name))
	return Account[common.Address]{Name: name, ID: common.BytesToAddress(hash[12:])}
}

// EVMDevAccounts returns DefaultEVMAccount followed by the dev accounts named by DevAccountNames.
func EVMDevAccounts() *Set[common.Address] {
	list := []Account[common.Address]{{Name: DefaultEVMAccountName, ID: DefaultEVMAccount}}
	for _, name := range DevAccountNames {
		list = append(list, EVMDevAccount(name))
	}
	set, err := NewSet(list...)
	if err != nil {
		// Names are fixed and distinct, and keccak collisions are not a concern.
		panic(err)
	}
	return set
}
