package ledger

import (
	"bytes"
	"math/big"

	"github.com/crytic/schlau/accounts"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/sandbox"
	"github.com/pkg/errors"
)

// ExecInput is the encoded input of a constructor or message: a selector followed by SCALE-encoded arguments. An
// ExecInput can only be started from a Selector, and selectors only come from an InterfaceTable, so every input
// passes through a name lookup. The zero ExecInput has no selector and is rejected wherever an input is required.
type ExecInput struct {
	selector types.Selector
	args     []byte
}

// errNoSelector is reported for inputs that did not start from a looked-up selector.
var errNoSelector = errors.New("input has no selector")

// NewExecInput starts an input with the given selector and no arguments. The selector must come from an
// InterfaceTable lookup.
func NewExecInput(selector types.Selector) (ExecInput, error) {
	if selector.IsZero() {
		return ExecInput{}, sandbox.NewEncodingError("input", errNoSelector)
	}
	return ExecInput{selector: selector}, nil
}

// PushArg appends the SCALE encoding of arg.
func (e ExecInput) PushArg(arg any) (ExecInput, error) {
	encoded, err := encodeScale(arg)
	if err != nil {
		return e, sandbox.NewEncodingError(e.selector.String(), err)
	}
	return e.PushEncoded(encoded)
}

// PushEncoded appends already SCALE-encoded argument bytes.
func (e ExecInput) PushEncoded(encoded []byte) (ExecInput, error) {
	if e.selector.IsZero() {
		return ExecInput{}, sandbox.NewEncodingError("input", errNoSelector)
	}
	args := make([]byte, 0, len(e.args)+len(encoded))
	args = append(append(args, e.args...), encoded...)
	return ExecInput{selector: e.selector, args: args}, nil
}

// Selector returns the selector the input starts with.
func (e ExecInput) Selector() types.Selector {
	return e.selector
}

// Bytes returns the selector followed by the encoded arguments.
func (e ExecInput) Bytes() []byte {
	return append(e.selector.Bytes(), e.args...)
}

// CreateArgs is a request to upload and instantiate contract code. It is a value: the With* methods return modified
// copies and never mutate the receiver, so one CreateArgs can seed many deployments.
type CreateArgs struct {
	// Origin pays for the deployment.
	Origin accounts.AccountID

	// Code is the Wasm blob to upload.
	Code []byte

	// Data is the constructor input. If nil, the constructor receives empty input, which is only valid for contracts
	// whose default constructor takes no selector.
	Data *ExecInput

	// Salt distinguishes instances of the same code deployed with the same input.
	Salt []byte

	// Value is transferred to the new contract. Nil means zero.
	Value *big.Int

	// GasLimit bounds the deployment. Nil means DefaultGasLimit.
	GasLimit *Weight

	// StorageDepositLimit caps the balance the deployment may lock for storage. Nil means unlimited.
	StorageDepositLimit *big.Int
}

// NewCreateArgs returns a request to deploy code paid for by origin, with zero value, empty salt and no limits set.
func NewCreateArgs(code []byte, origin accounts.AccountID) CreateArgs {
	return CreateArgs{Origin: origin, Code: code}
}

// WithData attaches a constructor selector and its encoded arguments.
func (c CreateArgs) WithData(input ExecInput) CreateArgs {
	c.Data = &input
	return c
}

// WithSalt sets the deployment salt.
func (c CreateArgs) WithSalt(salt []byte) CreateArgs {
	c.Salt = bytes.Clone(salt)
	return c
}

// WithValue sets the value transferred to the new contract.
func (c CreateArgs) WithValue(value *big.Int) CreateArgs {
	c.Value = new(big.Int).Set(value)
	return c
}

// WithGasLimit sets the weight budget.
func (c CreateArgs) WithGasLimit(limit Weight) CreateArgs {
	c.GasLimit = &limit
	return c
}

// WithMaxGasLimit sets an effectively unbounded weight budget.
func (c CreateArgs) WithMaxGasLimit() CreateArgs {
	return c.WithGasLimit(MaxGasLimit)
}

// WithStorageDepositLimit caps the storage deposit.
func (c CreateArgs) WithStorageDepositLimit(limit *big.Int) CreateArgs {
	c.StorageDepositLimit = new(big.Int).Set(limit)
	return c
}

// input returns the constructor input bytes.
func (c CreateArgs) input() []byte {
	if c.Data == nil {
		return nil
	}
	return c.Data.Bytes()
}

// CallArgs is a request to call a deployed contract. Like CreateArgs it is an immutable value, cheap to reuse across
// benchmark iterations.
type CallArgs struct {
	// Dest is the contract to call.
	Dest accounts.AccountID

	// Origin is the caller.
	Origin accounts.AccountID

	// Input is the message selector and encoded arguments.
	Input ExecInput

	// Value is transferred to the contract. Nil means zero.
	Value *big.Int

	// GasLimit bounds the call. Nil means DefaultGasLimit.
	GasLimit *Weight

	// StorageDepositLimit caps the balance the call may lock for storage. Nil means unlimited.
	StorageDepositLimit *big.Int
}

// NewCallArgs returns a request to call dest from origin with the given input, zero value and no limits set.
func NewCallArgs(dest accounts.AccountID, origin accounts.AccountID, input ExecInput) CallArgs {
	return CallArgs{Dest: dest, Origin: origin, Input: input}
}

// WithValue sets the value transferred with the call.
func (c CallArgs) WithValue(value *big.Int) CallArgs {
	c.Value = new(big.Int).Set(value)
	return c
}

// WithGasLimit sets the weight budget.
func (c CallArgs) WithGasLimit(limit Weight) CallArgs {
	c.GasLimit = &limit
	return c
}

// WithMaxGasLimit sets an effectively unbounded weight budget.
func (c CallArgs) WithMaxGasLimit() CallArgs {
	return c.WithGasLimit(MaxGasLimit)
}

// WithStorageDepositLimit caps the storage deposit.
func (c CallArgs) WithStorageDepositLimit(limit *big.Int) CallArgs {
	c.StorageDepositLimit = new(big.Int).Set(limit)
	return c
}

// CallBuilder is a typed description of "call message X on contract C with arguments Y", produced by a Message
// definition. Its arguments are encoded only when it is turned into CallArgs.
type CallBuilder struct {
	callee   accounts.AccountID
	label    string
	selector types.Selector
	args     []any
	value    *big.Int
}

// Callee returns the contract the call targets.
func (b CallBuilder) Callee() accounts.AccountID {
	return b.callee
}

// TransferredValue returns a copy of the builder that transfers value with the call.
func (b CallBuilder) TransferredValue(value *big.Int) CallBuilder {
	b.value = new(big.Int).Set(value)
	return b
}

// FromCallBuilder encodes a typed call and wraps it in CallArgs from caller with default limits. A builder from a
// message whose lookup failed has no selector and is rejected.
func FromCallBuilder(caller accounts.AccountID, builder CallBuilder) (CallArgs, error) {
	input, err := NewExecInput(builder.selector)
	if err != nil {
		return CallArgs{}, sandbox.NewEncodingError(builder.label, errNoSelector)
	}
	if input, err = encodeInput(input, builder.label, builder.args); err != nil {
		return CallArgs{}, err
	}

	args := NewCallArgs(builder.callee, caller, input)
	if builder.value != nil {
		args = args.WithValue(builder.value)
	}
	return args, nil
}

// lookupSelector resolves a message or constructor selector.
func lookupSelector(table *types.InterfaceTable, name string, constructor bool) (types.Selector, error) {
	if table == nil {
		return types.Selector{}, errors.New("no interface table")
	}
	if constructor {
		return table.ConstructorSelector(name)
	}
	return table.MessageSelector(name)
}

// Message0 is a message taking no arguments.
type Message0 struct {
	label    string
	selector types.Selector
}

// NewMessage0 looks up a message taking no arguments.
func NewMessage0(table *types.InterfaceTable, name string) (Message0, error) {
	selector, err := lookupSelector(table, name, false)
	if err != nil {
		return Message0{}, err
	}
	return Message0{label: name, selector: selector}, nil
}

// Call returns a builder calling the message on callee.
func (m Message0) Call(callee accounts.AccountID) CallBuilder {
	return CallBuilder{callee: callee, label: m.label, selector: m.selector}
}

// Message1 is a message taking one argument of type A.
type Message1[A any] struct {
	label    string
	selector types.Selector
}

// NewMessage1 looks up a message taking one argument.
func NewMessage1[A any](table *types.InterfaceTable, name string) (Message1[A], error) {
	selector, err := lookupSelector(table, name, false)
	if err != nil {
		return Message1[A]{}, err
	}
	return Message1[A]{label: name, selector: selector}, nil
}

// Call returns a builder calling the message on callee with a.
func (m Message1[A]) Call(callee accounts.AccountID, a A) CallBuilder {
	return CallBuilder{callee: callee, label: m.label, selector: m.selector, args: []any{a}}
}

// Message2 is a message taking arguments of types A and B.
type Message2[A any, B any] struct {
	label    string
	selector types.Selector
}

// NewMessage2 looks up a message taking two arguments.
func NewMessage2[A any, B any](table *types.InterfaceTable, name string) (Message2[A, B], error) {
	selector, err := lookupSelector(table, name, false)
	if err != nil {
		return Message2[A, B]{}, err
	}
	return Message2[A, B]{label: name, selector: selector}, nil
}

// Call returns a builder calling the message on callee with a and b.
func (m Message2[A, B]) Call(callee accounts.AccountID, a A, b B) CallBuilder {
	return CallBuilder{callee: callee, label: m.label, selector: m.selector, args: []any{a, b}}
}

// ConstructorInput encodes a constructor selector and its arguments for CreateArgs.WithData.
func ConstructorInput(table *types.InterfaceTable, name string, args ...any) (ExecInput, error) {
	selector, err := lookupSelector(table, name, true)
	if err != nil {
		return ExecInput{}, err
	}
	input, err := NewExecInput(selector)
	if err != nil {
		return ExecInput{}, err
	}
	return encodeInput(input, name, args)
}

// MessageInput encodes a message selector and its arguments for NewCallArgs.
func MessageInput(table *types.InterfaceTable, name string, args ...any) (ExecInput, error) {
	selector, err := lookupSelector(table, name, false)
	if err != nil {
		return ExecInput{}, err
	}
	input, err := NewExecInput(selector)
	if err != nil {
		return ExecInput{}, err
	}
	return encodeInput(input, name, args)
}

// encodeInput appends the SCALE encoding of each argument to input.
func encodeInput(input ExecInput, label string, args []any) (ExecInput, error) {
	for _, arg := range args {
		encoded, err := encodeScale(arg)
		if err != nil {
			return ExecInput{}, sandbox.NewEncodingError(label, err)
		}
		if input, err = input.PushEncoded(encoded); err != nil {
			return ExecInput{}, err
		}
	}
	return input, nil
}
