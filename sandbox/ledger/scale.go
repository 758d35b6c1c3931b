package ledger

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/pkg/errors"
)

// LangError is the language-level error an ink! contract returns in place of a message result, e.g. when it cannot
// decode its input.
type LangError struct {
	// Code is the SCALE variant index of the error.
	Code byte
}

// langErrorCouldNotReadInput is the variant reported when no message matches the input selector.
const langErrorCouldNotReadInput = 1

// Error returns the error message.
func (e *LangError) Error() string {
	if e.Code == langErrorCouldNotReadInput {
		return "contract could not read its input"
	}
	return fmt.Sprintf("contract returned language error %d", e.Code)
}

// DecodeMessageResult strips the Result<T, LangError> envelope an ink! message wraps its return value in, returning
// the encoded T.
func DecodeMessageResult(output []byte) ([]byte, error) {
	if len(output) == 0 {
		return nil, errors.New("message output is empty")
	}
	switch output[0] {
	case 0:
		return output[1:], nil
	case 1:
		if len(output) < 2 {
			return nil, errors.New("message output has a truncated error variant")
		}
		return nil, &LangError{Code: output[1]}
	default:
		return nil, errors.Errorf("message output has invalid result tag %d", output[0])
	}
}

// DecodeValue decodes a SCALE-encoded value.
func DecodeValue[T any](data []byte) (T, error) {
	var value T
	err := decodeScale(data, &value)
	return value, err
}

// DecodeMessageValue strips the ink! result envelope and decodes the returned value.
func DecodeMessageValue[T any](output []byte) (T, error) {
	payload, err := DecodeMessageResult(output)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeValue[T](payload)
}

// encodeScale SCALE-encodes a single value.
func encodeScale(value any) ([]byte, error) {
	encoded, err := codec.Encode(value)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return encoded, nil
}

func decodeScale(data []byte, target any) error {
	return errors.WithStack(codec.Decode(data, target))
}
