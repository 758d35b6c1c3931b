package ledger

import (
	"bytes"
	"math"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/pkg/errors"
)

// Weight is the two-dimensional metering budget of the ledger runtime: computation time and proof size.
type Weight struct {
	RefTime   uint64
	ProofSize uint64
}

var (
	// DefaultGasLimit is applied when a request does not set a gas limit.
	DefaultGasLimit = Weight{RefTime: 100_000_000_000, ProofSize: 3 * 1024 * 1024}

	// MaxGasLimit is an effectively unbounded budget, for measuring execution cost without metering limits.
	MaxGasLimit = Weight{RefTime: math.MaxUint64, ProofSize: math.MaxUint64}
)

// Add returns the component-wise sum, saturating at the maximum.
func (w Weight) Add(other Weight) Weight {
	return Weight{RefTime: saturatingAdd(w.RefTime, other.RefTime), ProofSize: saturatingAdd(w.ProofSize, other.ProofSize)}
}

// AllLTE reports whether both components are less than or equal to the other's.
func (w Weight) AllLTE(other Weight) bool {
	return w.RefTime <= other.RefTime && w.ProofSize <= other.ProofSize
}

// Encode returns the SCALE encoding of the weight (two compact integers).
func (w Weight) Encode() []byte {
	var buf bytes.Buffer
	encoder := scale.NewEncoder(&buf)
	// Writes into memory cannot fail.
	_ = encoder.EncodeUintCompact(*new(big.Int).SetUint64(w.RefTime))
	_ = encoder.EncodeUintCompact(*new(big.Int).SetUint64(w.ProofSize))
	return buf.Bytes()
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// ReturnFlags are the flags a contract passes when it returns.
type ReturnFlags uint32

// FlagRevert is set when the contract reverted. Its state changes are rolled back.
const FlagRevert ReturnFlags = 1

// ExecReturn is the raw outcome of a contract execution that was dispatched successfully.
type ExecReturn struct {
	Flags ReturnFlags
	Data  []byte
}

// DidRevert reports whether the contract signalled failure.
func (r ExecReturn) DidRevert() bool {
	return r.Flags&FlagRevert != 0
}

// maxBalance is the largest value of the runtime's 128-bit balance type.
var maxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// validateBalance checks that a balance is representable by the runtime.
func validateBalance(v *big.Int) error {
	if v.Sign() < 0 {
		return errors.Errorf("balance %v is negative", v)
	}
	if v.Cmp(maxBalance) > 0 {
		return errors.Errorf("balance %v does not fit in 128 bits", v)
	}
	return nil
}

// encodeBalance returns the SCALE encoding of a balance (16 bytes, little endian).
func encodeBalance(v *big.Int) []byte {
	encoded, _ := codec.Encode(types.NewU128(*v))
	return encoded
}

// decodeBalance decodes a SCALE u128.
func decodeBalance(data []byte) (*big.Int, error) {
	var v types.U128
	if err := decodeScale(data, &v); err != nil {
		return nil, err
	}
	if v.Int == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(v.Int), nil
}

// zeroIfNil returns v, or zero if v is nil.
func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
