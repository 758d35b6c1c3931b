package config

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// maxLedgerBalance is the largest balance a ledger account can hold, 2^128-1.
var maxLedgerBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is a non-negative integral token amount. In JSON it is a string holding a decimal number, which may use an
// exponent ("1e15"), or a 0x-prefixed hexadecimal number. An empty string is zero.
type Amount struct {
	value *big.Int
}

// NewAmount returns an Amount holding a copy of value.
func NewAmount(value *big.Int) *Amount {
	return &Amount{value: new(big.Int).Set(value)}
}

// NewAmountFromUint64 returns an Amount holding value.
func NewAmountFromUint64(value uint64) *Amount {
	return &Amount{value: new(big.Int).SetUint64(value)}
}

// ParseAmount parses the string form of an Amount.
func ParseAmount(s string) (*Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Amount{value: new(big.Int)}, nil
	}

	var value *big.Int
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		var ok bool
		value, ok = new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, errors.Errorf("invalid hexadecimal amount '%s'", s)
		}
	} else {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount '%s'", s)
		}
		if !d.IsInteger() {
			return nil, errors.Errorf("amount '%s' is not an integer", s)
		}
		value = d.BigInt()
	}
	if value.Sign() < 0 {
		return nil, errors.Errorf("amount '%s' is negative", s)
	}
	return &Amount{value: value}, nil
}

// Int returns a copy of the amount.
func (a *Amount) Int() *big.Int {
	if a == nil || a.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.value)
}

// Uint256 returns the amount as a 256-bit integer, failing if it does not fit.
func (a *Amount) Uint256() (*uint256.Int, error) {
	value, overflow := uint256.FromBig(a.Int())
	if overflow {
		return nil, errors.Errorf("amount %s exceeds 256 bits", a)
	}
	return value, nil
}

// FitsLedgerBalance reports whether the amount can be held by a ledger account.
func (a *Amount) FitsLedgerBalance() bool {
	return a.Int().Cmp(maxLedgerBalance) <= 0
}

// String returns the decimal representation of the amount.
func (a *Amount) String() string {
	return a.Int().String()
}

// MarshalJSON encodes the amount as a decimal string.
func (a *Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an amount from its string form.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "amounts must be strings")
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	a.value = parsed.value
	return nil
}
