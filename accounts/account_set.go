package accounts

import (
	"github.com/pkg/errors"
)

// FundingAmount is the balance minted into every account of a sandbox's account set when it is created. It is large
// enough that repeated deploy and call cycles never run out of funds.
const FundingAmount uint64 = 1_000_000_000_000_000

// DevAccountNames lists the well-known test identities funded in every sandbox, in funding order.
var DevAccountNames = []string{"alice", "bob", "charlie", "dave", "eve", "ferdie", "one", "two"}

// Account is a named account identifier. ID is a 32-byte account ID on the ledger backend and a 20-byte address on
// the EVM backend.
type Account[ID comparable] struct {
	Name string
	ID   ID
}

// Set is an ordered, immutable collection of named accounts. Sandboxes receive a Set on construction and fund each
// of its members exactly once.
type Set[ID comparable] struct {
	accounts []Account[ID]
	byName   map[string]int
}

// NewSet creates a Set from the provided accounts. Names and identifiers must be unique.
func NewSet[ID comparable](accounts ...Account[ID]) (*Set[ID], error) {
	s := &Set[ID]{
		accounts: make([]Account[ID], 0, len(accounts)),
		byName:   make(map[string]int, len(accounts)),
	}
	seen := make(map[ID]string, len(accounts))
	for _, account := range accounts {
		if account.Name == "" {
			return nil, errors.New("account names must not be empty")
		}
		if _, exists := s.byName[account.Name]; exists {
			return nil, errors.Errorf("duplicate account name '%s'", account.Name)
		}
		if other, exists := seen[account.ID]; exists {
			return nil, errors.Errorf("accounts '%s' and '%s' share the same identifier", other, account.Name)
		}
		seen[account.ID] = account.Name
		s.byName[account.Name] = len(s.accounts)
		s.accounts = append(s.accounts, account)
	}
	return s, nil
}

// Len returns the number of accounts in the set.
func (s *Set[ID]) Len() int {
	return len(s.accounts)
}

// All returns a copy of the accounts in the set, in order.
func (s *Set[ID]) All() []Account[ID] {
	return append([]Account[ID](nil), s.accounts...)
}

// IDs returns the identifiers of all accounts in the set, in order.
func (s *Set[ID]) IDs() []ID {
	ids := make([]ID, len(s.accounts))
	for i, account := range s.accounts {
		ids[i] = account.ID
	}
	return ids
}

// Get looks up an account identifier by name.
func (s *Set[ID]) Get(name string) (ID, bool) {
	i, ok := s.byName[name]
	if !ok {
		var zero ID
		return zero, false
	}
	return s.accounts[i].ID, true
}

// MustGet looks up an account identifier by name and panics if it does not exist.
func (s *Set[ID]) MustGet(name string) ID {
	id, ok := s.Get(name)
	if !ok {
		panic(errors.Errorf("unknown account '%s'", name))
	}
	return id
}

// Contains reports whether id belongs to the set.
func (s *Set[ID]) Contains(id ID) bool {
	for _, account := range s.accounts {
		if account.ID == id {
			return true
		}
	}
	return false
}
