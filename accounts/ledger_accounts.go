package accounts

import (
	"encoding/hex"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/pkg/errors"
)

// ss58Prefix is the generic substrate address format, used only for the Address field of derived key pairs.
const ss58Prefix = 42

// AccountID is a 32-byte ledger account identifier (an sr25519 public key for dev accounts, a derived hash for
// contracts).
type AccountID [32]byte

// NewAccountID copies b into an AccountID, failing if it is not exactly 32 bytes long.
func NewAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return id, errors.Errorf("account id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String renders the account ID as 0x-prefixed hex.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// LedgerDevAccount derives the sr25519 dev account for a well-known name, e.g. "alice" maps to the secret URI
// "//Alice".
func LedgerDevAccount(name string) (Account[AccountID], error) {
	if name == "" {
		return Account[AccountID]{}, errors.New("dev account name must not be empty")
	}
	uri := "//" + strings.ToUpper(name[:1]) + name[1:]
	pair, err := signature.KeyringPairFromSecret(uri, ss58Prefix)
	if err != nil {
		return Account[AccountID]{}, errors.Wrapf(err, "could not derive dev account '%s'", name)
	}
	id, err := NewAccountID(pair.PublicKey)
	if err != nil {
		return Account[AccountID]{}, err
	}
	return Account[AccountID]{Name: name, ID: id}, nil
}

// LedgerDevAccounts returns the set of well-known ledger dev accounts named by DevAccountNames.
func LedgerDevAccounts() (*Set[AccountID], error) {
	list := make([]Account[AccountID], 0, len(DevAccountNames))
	for _, name := range DevAccountNames {
		account, err := LedgerDevAccount(name)
		if err != nil {
			return nil, err
		}
		list = append(list, account)
	}
	return NewSet(list...)
}
