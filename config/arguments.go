package config

import (
	"math/big"
	"strconv"
	"strings"

	gsrpcTypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ArgumentConfig is a typed constructor or message argument. Type names an integer ("int8" to "int256", "uint8" to
// "uint256", with "i"/"u" short forms such as "u128"), "bool", "string", "bytes" (0x-prefixed hex), "bytes32" or an
// account ("address" or "account"). Account values are dev account names such as "alice", or hex identifiers.
type ArgumentConfig struct {
	// Type is the argument type.
	Type string `json:"type"`

	// Value is the string form of the argument.
	Value string `json:"value"`
}

// integerType parses the bit size and signedness of an integer type name. ok is false for non-integer types.
func integerType(typeName string) (bits int, signed bool, ok bool) {
	var digits string
	switch {
	case strings.HasPrefix(typeName, "uint"):
		digits = typeName[4:]
	case strings.HasPrefix(typeName, "int"):
		digits, signed = typeName[3:], true
	case strings.HasPrefix(typeName, "u"):
		digits = typeName[1:]
	case strings.HasPrefix(typeName, "i"):
		digits, signed = typeName[1:], true
	default:
		return 0, false, false
	}
	bits, err := strconv.Atoi(digits)
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, false, false
	}
	return bits, signed, true
}

// parseInteger parses a decimal or hexadecimal integer and checks that it fits the given type.
func parseInteger(value string, bits int, signed bool) (*big.Int, error) {
	value = strings.TrimSpace(value)
	var n *big.Int
	if strings.HasPrefix(value, "0x") {
		var ok bool
		if n, ok = new(big.Int).SetString(value[2:], 16); !ok {
			return nil, errors.Errorf("invalid hexadecimal integer '%s'", value)
		}
	} else {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer '%s'", value)
		}
		if !d.IsInteger() {
			return nil, errors.Errorf("'%s' is not an integer", value)
		}
		n = d.BigInt()
	}

	var lower, upper *big.Int
	if signed {
		upper = new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		lower = new(big.Int).Neg(upper)
	} else {
		upper = new(big.Int).Lsh(big.NewInt(1), uint(bits))
		lower = new(big.Int)
	}
	if n.Cmp(lower) < 0 || n.Cmp(upper) >= 0 {
		return nil, errors.Errorf("%s does not fit in %d bits", value, bits)
	}
	return n, nil
}

// nativeInteger converts n to the Go integer type of the given size, or returns nil for sizes without one.
func nativeInteger(n *big.Int, bits int, signed bool) any {
	switch {
	case signed && bits == 8:
		return int8(n.Int64())
	case signed && bits == 16:
		return int16(n.Int64())
	case signed && bits == 32:
		return int32(n.Int64())
	case signed && bits == 64:
		return n.Int64()
	case !signed && bits == 8:
		return uint8(n.Uint64())
	case !signed && bits == 16:
		return uint16(n.Uint64())
	case !signed && bits == 32:
		return uint32(n.Uint64())
	case !signed && bits == 64:
		return n.Uint64()
	default:
		return nil
	}
}

func parseBool(value string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.Errorf("invalid boolean '%s'", value)
	}
	return b, nil
}

// LedgerValue converts the argument into a value the SCALE codec encodes as the given type.
func (a ArgumentConfig) LedgerValue() (any, error) {
	if bits, signed, ok := integerType(a.Type); ok {
		n, err := parseInteger(a.Value, bits, signed)
		if err != nil {
			return nil, err
		}
		if native := nativeInteger(n, bits, signed); native != nil {
			return native, nil
		}
		switch {
		case bits == 128 && !signed:
			return gsrpcTypes.NewU128(*n), nil
		case bits == 256 && !signed:
			return gsrpcTypes.NewU256(*n), nil
		case bits == 128 && signed:
			return gsrpcTypes.NewI128(*n), nil
		case bits == 256 && signed:
			return gsrpcTypes.NewI256(*n), nil
		}
		return nil, errors.Errorf("integer type '%s' has no SCALE encoding", a.Type)
	}

	switch a.Type {
	case "bool":
		return parseBool(a.Value)
	case "string", "str":
		return a.Value, nil
	case "bytes":
		return common.FromHex(a.Value), nil
	case "account", "address", "AccountId":
		if strings.HasPrefix(a.Value, "0x") {
			return accounts.NewAccountID(common.FromHex(a.Value))
		}
		account, err := accounts.LedgerDevAccount(a.Value)
		if err != nil {
			return nil, err
		}
		return account.ID, nil
	default:
		return nil, errors.Errorf("unsupported argument type '%s'", a.Type)
	}
}

// EVMValue converts the argument into the Go type the ABI encoder expects for the given Solidity type.
func (a ArgumentConfig) EVMValue() (any, error) {
	if bits, signed, ok := integerType(a.Type); ok {
		n, err := parseInteger(a.Value, bits, signed)
		if err != nil {
			return nil, err
		}
		if native := nativeInteger(n, bits, signed); native != nil {
			return native, nil
		}
		return n, nil
	}

	switch a.Type {
	case "bool":
		return parseBool(a.Value)
	case "string":
		return a.Value, nil
	case "bytes":
		return common.FromHex(a.Value), nil
	case "bytes32":
		b := common.FromHex(a.Value)
		if len(b) != 32 {
			return nil, errors.Errorf("bytes32 value has %d bytes", len(b))
		}
		return [32]byte(b), nil
	case "address", "account":
		if common.IsHexAddress(a.Value) {
			return common.HexToAddress(a.Value), nil
		}
		if a.Value == accounts.DefaultEVMAccountName {
			return accounts.DefaultEVMAccount, nil
		}
		for _, name := range accounts.DevAccountNames {
			if name == a.Value {
				return accounts.EVMDevAccount(name).ID, nil
			}
		}
		return nil, errors.Errorf("'%s' is neither an address nor a dev account name", a.Value)
	default:
		return nil, errors.Errorf("unsupported argument type '%s'", a.Type)
	}
}

// ArgumentValues converts arguments for the given backend, in order.
func ArgumentValues(args []ArgumentConfig, backend types.Backend) ([]any, error) {
	values := make([]any, 0, len(args))
	for i, arg := range args {
		var (
			value any
			err   error
		)
		switch backend {
		case types.BackendLedger:
			value, err = arg.LedgerValue()
		case types.BackendEVM:
			value, err = arg.EVMValue()
		default:
			err = errors.Errorf("unknown backend '%s'", backend)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		values = append(values, value)
	}
	return values, nil
}
