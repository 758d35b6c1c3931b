package evm

import (
	"math"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/sandbox"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// DefaultGasLimit is the gas limit of requests that do not set one.
const DefaultGasLimit uint64 = 1_000_000_000

// MaxGasLimit is an effectively unbounded gas limit, for measuring execution cost without metering limits.
const MaxGasLimit uint64 = math.MaxUint64

// MinGasPrice is the default maximum fee per gas. It is the lowest gas price the sandbox accepts.
var MinGasPrice = uint256.NewInt(1_000_000_000)

// Calldata is ABI-encoded call input: a 4-byte function selector followed by the packed arguments. It can only be
// produced by packing arguments against an EVMInterface.
type Calldata struct {
	data []byte
}

// Bytes returns a copy of the encoded input.
func (c Calldata) Bytes() []byte {
	return common.CopyBytes(c.data)
}

// IsEmpty reports whether the calldata was never packed. Every packed call starts with a selector.
func (c Calldata) IsEmpty() bool {
	return len(c.data) == 0
}

// Selector returns the 4-byte function selector.
func (c Calldata) Selector() []byte {
	if len(c.data) < 4 {
		return nil
	}
	return common.CopyBytes(c.data[:4])
}

// packMethod encodes a call to method with args.
func packMethod(method *abi.Method, args []any) (Calldata, error) {
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return Calldata{}, sandbox.NewEncodingError(method.Sig, err)
	}
	data := make([]byte, 0, len(method.ID)+len(packed))
	return Calldata{data: append(append(data, method.ID...), packed...)}, nil
}

// PackCall resolves a function by name or signature and ABI-encodes a call to it.
func PackCall(iface *types.EVMInterface, nameOrSignature string, args ...any) (Calldata, error) {
	if iface == nil {
		return Calldata{}, errors.New("no interface")
	}
	method, err := iface.Function(nameOrSignature)
	if err != nil {
		return Calldata{}, err
	}
	return packMethod(method, args)
}

// ConstructorInput is the ABI encoding of constructor arguments, appended to the init code on deployment.
type ConstructorInput struct {
	data []byte
}

// PackConstructor ABI-encodes constructor arguments.
func PackConstructor(iface *types.EVMInterface, args ...any) (ConstructorInput, error) {
	if iface == nil {
		return ConstructorInput{}, errors.New("no interface")
	}
	packed, err := iface.Constructor().Inputs.Pack(args...)
	if err != nil {
		return ConstructorInput{}, sandbox.NewEncodingError("constructor", err)
	}
	return ConstructorInput{data: packed}, nil
}

// fees are the gas and fee fields shared by creates and calls.
type fees struct {
	// GasLimit bounds the operation. Zero means DefaultGasLimit.
	GasLimit uint64

	// MaxFeePerGas is the fee cap. Nil means MinGasPrice.
	MaxFeePerGas *uint256.Int

	// MaxPriorityFeePerGas is the tip cap. Nil means zero.
	MaxPriorityFeePerGas *uint256.Int

	// Nonce overrides the sender's current nonce. Nil means the current nonce.
	Nonce *uint64

	// AccessList is passed to the engine unchanged.
	AccessList gethTypes.AccessList
}

func (f fees) gasLimit() uint64 {
	if f.GasLimit == 0 {
		return DefaultGasLimit
	}
	return f.GasLimit
}

func (f fees) maxFeePerGas() *uint256.Int {
	if f.MaxFeePerGas == nil {
		return MinGasPrice.Clone()
	}
	return f.MaxFeePerGas.Clone()
}

func (f fees) maxPriorityFeePerGas() *uint256.Int {
	if f.MaxPriorityFeePerGas == nil {
		return new(uint256.Int)
	}
	return f.MaxPriorityFeePerGas.Clone()
}

// CreateArgs is a request to deploy init code. It is a value: the With* methods return modified copies.
type CreateArgs struct {
	fees

	// Source is the deployer.
	Source common.Address

	// InitCode is the creation bytecode.
	InitCode []byte

	// Data holds the encoded constructor arguments, appended to InitCode.
	Data []byte

	// Value is transferred to the new contract. Nil means zero.
	Value *uint256.Int
}

// NewCreateArgs returns a request to deploy initCode from source with zero value and default fees.
func NewCreateArgs(initCode []byte, source common.Address) CreateArgs {
	return CreateArgs{Source: source, InitCode: initCode}
}

// WithData attaches encoded constructor arguments.
func (c CreateArgs) WithData(input ConstructorInput) CreateArgs {
	c.Data = common.CopyBytes(input.data)
	return c
}

// WithValue sets the value transferred to the new contract.
func (c CreateArgs) WithValue(value *uint256.Int) CreateArgs {
	c.Value = value.Clone()
	return c
}

// WithGasLimit sets the gas limit.
func (c CreateArgs) WithGasLimit(limit uint64) CreateArgs {
	c.GasLimit = limit
	return c
}

// WithMaxGasLimit sets an effectively unbounded gas limit.
func (c CreateArgs) WithMaxGasLimit() CreateArgs {
	return c.WithGasLimit(MaxGasLimit)
}

// WithMaxFeePerGas sets the fee cap.
func (c CreateArgs) WithMaxFeePerGas(fee *uint256.Int) CreateArgs {
	c.MaxFeePerGas = fee.Clone()
	return c
}

// WithMaxPriorityFeePerGas sets the tip cap.
func (c CreateArgs) WithMaxPriorityFeePerGas(fee *uint256.Int) CreateArgs {
	c.MaxPriorityFeePerGas = fee.Clone()
	return c
}

// WithNonce overrides the deployer's nonce.
func (c CreateArgs) WithNonce(nonce uint64) CreateArgs {
	c.Nonce = &nonce
	return c
}

// WithAccessList sets the access list.
func (c CreateArgs) WithAccessList(accessList gethTypes.AccessList) CreateArgs {
	c.AccessList = accessList
	return c
}

// input returns the init code followed by the constructor arguments.
func (c CreateArgs) input() []byte {
	data := make([]byte, 0, len(c.InitCode)+len(c.Data))
	return append(append(data, c.InitCode...), c.Data...)
}

// CallArgs is a request to call a deployed contract. Like CreateArgs it is an immutable value.
type CallArgs struct {
	fees

	// Dest is the contract to call.
	Dest common.Address

	// Source is the caller.
	Source common.Address

	// Input is the ABI-encoded call.
	Input Calldata

	// Value is transferred to the contract. Nil means zero.
	Value *uint256.Int
}

// NewCallArgs returns a request to call dest from source with zero value and default fees.
func NewCallArgs(dest common.Address, source common.Address, input Calldata) CallArgs {
	return CallArgs{Dest: dest, Source: source, Input: input}
}

// WithValue sets the value transferred with the call.
func (c CallArgs) WithValue(value *uint256.Int) CallArgs {
	c.Value = value.Clone()
	return c
}

// WithGasLimit sets the gas limit.
func (c CallArgs) WithGasLimit(limit uint64) CallArgs {
	c.GasLimit = limit
	return c
}

// WithMaxGasLimit sets an effectively unbounded gas limit.
func (c CallArgs) WithMaxGasLimit() CallArgs {
	return c.WithGasLimit(MaxGasLimit)
}

// WithMaxFeePerGas sets the fee cap.
func (c CallArgs) WithMaxFeePerGas(fee *uint256.Int) CallArgs {
	c.MaxFeePerGas = fee.Clone()
	return c
}

// WithMaxPriorityFeePerGas sets the tip cap.
func (c CallArgs) WithMaxPriorityFeePerGas(fee *uint256.Int) CallArgs {
	c.MaxPriorityFeePerGas = fee.Clone()
	return c
}

// WithNonce overrides the caller's nonce.
func (c CallArgs) WithNonce(nonce uint64) CallArgs {
	c.Nonce = &nonce
	return c
}

// WithAccessList sets the access list.
func (c CallArgs) WithAccessList(accessList gethTypes.AccessList) CallArgs {
	c.AccessList = accessList
	return c
}

// MethodCall is a typed description of "call function X on contract C with arguments Y", produced by a Function
// definition. Its arguments are encoded only when it is turned into CallArgs.
type MethodCall struct {
	callee common.Address
	method *abi.Method
	args   []any
	value  *uint256.Int
}

// Callee returns the contract the call targets.
func (m MethodCall) Callee() common.Address {
	return m.callee
}

// TransferredValue returns a copy of the call that transfers value.
func (m MethodCall) TransferredValue(value *uint256.Int) MethodCall {
	m.value = value.Clone()
	return m
}

// FromMethodCall encodes a typed call and wraps it in CallArgs from caller with default fees.
func FromMethodCall(caller common.Address, call MethodCall) (CallArgs, error) {
	if call.method == nil {
		return CallArgs{}, errors.Wrap(types.ErrFunctionNotFound, "method call has no function")
	}
	input, err := packMethod(call.method, call.args)
	if err != nil {
		return CallArgs{}, err
	}
	args := NewCallArgs(call.callee, caller, input)
	if call.value != nil {
		args = args.WithValue(call.value)
	}
	return args, nil
}

// Function0 is a function taking no arguments.
type Function0 struct {
	method *abi.Method
}

// NewFunction0 resolves a function taking no arguments.
func NewFunction0(iface *types.EVMInterface, nameOrSignature string) (Function0, error) {
	method, err := resolve(iface, nameOrSignature, 0)
	return Function0{method: method}, err
}

// Call returns a call of the function on callee.
func (f Function0) Call(callee common.Address) MethodCall {
	return MethodCall{callee: callee, method: f.method}
}

// Function1 is a function taking one argument of type A.
type Function1[A any] struct {
	method *abi.Method
}

// NewFunction1 resolves a function taking one argument.
func NewFunction1[A any](iface *types.EVMInterface, nameOrSignature string) (Function1[A], error) {
	method, err := resolve(iface, nameOrSignature, 1)
	return Function1[A]{method: method}, err
}

// Call returns a call of the function on callee with a.
func (f Function1[A]) Call(callee common.Address, a A) MethodCall {
	return MethodCall{callee: callee, method: f.method, args: []any{a}}
}

// Function2 is a function taking arguments of types A and B.
type Function2[A any, B any] struct {
	method *abi.Method
}

// NewFunction2 resolves a function taking two arguments.
func NewFunction2[A any, B any](iface *types.EVMInterface, nameOrSignature string) (Function2[A, B], error) {
	method, err := resolve(iface, nameOrSignature, 2)
	return Function2[A, B]{method: method}, err
}

// Call returns a call of the function on callee with a and b.
func (f Function2[A, B]) Call(callee common.Address, a A, b B) MethodCall {
	return MethodCall{callee: callee, method: f.method, args: []any{a, b}}
}

// resolve looks up a function and checks its arity.
func resolve(iface *types.EVMInterface, nameOrSignature string, arity int) (*abi.Method, error) {
	if iface == nil {
		return nil, errors.New("no interface")
	}
	method, err := iface.Function(nameOrSignature)
	if err != nil {
		return nil, err
	}
	if len(method.Inputs) != arity {
		return nil, errors.Wrapf(types.ErrFunctionNotFound, "'%s' takes %d arguments, not %d", method.Sig, len(method.Inputs), arity)
	}
	return method, nil
}

// UnpackOutput decodes the return data of a call to the named function.
func UnpackOutput(iface *types.EVMInterface, nameOrSignature string, output []byte) ([]any, error) {
	if iface == nil {
		return nil, errors.New("no interface")
	}
	method, err := iface.Function(nameOrSignature)
	if err != nil {
		return nil, err
	}
	values, err := method.Outputs.Unpack(output)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode the output of '%s'", method.Sig)
	}
	return values, nil
}
