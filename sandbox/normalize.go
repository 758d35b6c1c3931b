package sandbox

import (
	"slices"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ByteOrder is the byte order a backend uses for 256-bit words in call output.
type ByteOrder int

const (
	// BigEndian is the EVM ABI word order.
	BigEndian ByteOrder = iota
	// LittleEndian is the SCALE integer order used by the ledger backend.
	LittleEndian
)

// WordSize is the size of an unsigned 256-bit word in bytes.
const WordSize = 32

// DecodeU256Words splits output into consecutive 256-bit words in the given byte order.
func DecodeU256Words(output []byte, order ByteOrder) ([]*uint256.Int, error) {
	if len(output)%WordSize != 0 {
		return nil, errors.Errorf("output length %d is not a multiple of %d", len(output), WordSize)
	}

	words := make([]*uint256.Int, 0, len(output)/WordSize)
	for offset := 0; offset < len(output); offset += WordSize {
		word := output[offset : offset+WordSize]
		if order == LittleEndian {
			word = slices.Clone(word)
			slices.Reverse(word)
		}
		words = append(words, new(uint256.Int).SetBytes32(word))
	}
	return words, nil
}

// CanonicalU256Words returns the words in output as canonical big-endian 32-byte values, so outputs of different
// backends can be compared directly.
func CanonicalU256Words(output []byte, order ByteOrder) ([][WordSize]byte, error) {
	words, err := DecodeU256Words(output, order)
	if err != nil {
		return nil, err
	}
	canonical := make([][WordSize]byte, len(words))
	for i, word := range words {
		canonical[i] = word.Bytes32()
	}
	return canonical, nil
}
