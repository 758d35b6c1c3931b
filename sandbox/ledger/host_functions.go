package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/schlau/accounts"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/crypto/blake2b"
)

// Return codes of fallible host functions.
const (
	returnSuccess         uint32 = 0
	returnKeyNotFound     uint32 = 3
	returnTransferFailed  uint32 = 5
	returnLoggingDisabled uint32 = 9
)

// sentinel is passed as a pointer to skip output, and returned by storage functions when a key was absent.
const sentinel = math.MaxUint32

// gasMeter tracks the weight consumed by an operation against its limit.
type gasMeter struct {
	limit Weight
	used  Weight
}

// charge consumes w, reporting false without consuming anything if the limit would be exceeded.
func (g *gasMeter) charge(w Weight) bool {
	next := g.used.Add(w)
	if !next.AllLTE(g.limit) {
		return false
	}
	g.used = next
	return true
}

// left returns the remaining weight.
func (g *gasMeter) left() Weight {
	return Weight{RefTime: g.limit.RefTime - g.used.RefTime, ProofSize: g.limit.ProofSize - g.used.ProofSize}
}

// hostAbort is the panic value host functions use to stop contract execution. The reason is recorded on the frame.
type hostAbort struct{}

// frame is the execution state of one top-level operation, shared with host functions through the context.
type frame struct {
	engine   *WasmEngine
	schedule *Schedule
	gas      gasMeter

	debug    bool
	debugBuf bytes.Buffer

	tx       *transaction
	contract accounts.AccountID
	caller   accounts.AccountID
	value    *big.Int
	input    []byte

	returned bool
	ret      ExecReturn
	trap     *DispatchError
}

type frameKey struct{}

func newFrame(e *WasmEngine, limit Weight, debug bool) *frame {
	return &frame{engine: e, schedule: &e.schedule, gas: gasMeter{limit: limit}, debug: debug}
}

// enter binds the frame to a contract execution.
func (f *frame) enter(tx *transaction, contract accounts.AccountID, caller accounts.AccountID, value *big.Int, input []byte) {
	f.tx = tx
	f.contract = contract
	f.caller = caller
	f.value = value
	f.input = input
}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// hostFrame returns the frame of the running execution and charges the host function base cost.
func hostFrame(ctx context.Context) *frame {
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok {
		panic("host function called outside of a contract execution")
	}
	f.charge(f.schedule.HostFunction)
	return f
}

func (f *frame) debugf(format string, args ...any) {
	if f.debug {
		fmt.Fprintf(&f.debugBuf, format+"\n", args...)
	}
}

func (f *frame) debugMessage() []byte {
	if f.debugBuf.Len() == 0 {
		return nil
	}
	return bytes.Clone(f.debugBuf.Bytes())
}

// abort stops the contract with a dispatch error.
func (f *frame) abort(reason string) {
	f.trap = newContractsError(reason)
	panic(hostAbort{})
}

func (f *frame) charge(w Weight) {
	if !f.gas.charge(w) {
		f.abort(ReasonOutOfGas)
	}
}

func (f *frame) chargeBytes(n uint32) {
	f.charge(Weight{RefTime: f.schedule.ByteCopy * uint64(n)})
}

// read copies length bytes out of contract memory.
func (f *frame) read(m api.Module, ptr uint32, length uint32) []byte {
	f.chargeBytes(length)
	data, ok := m.Memory().Read(ptr, length)
	if !ok {
		f.abort(ReasonOutOfBounds)
	}
	return append([]byte{}, data...)
}

// write copies data into contract memory.
func (f *frame) write(m api.Module, ptr uint32, data []byte) {
	f.chargeBytes(uint32(len(data)))
	if !m.Memory().Write(ptr, data) {
		f.abort(ReasonOutOfBounds)
	}
}

// writeOutput writes data to a contract output buffer whose capacity is stored at outLenPtr, then stores the written
// length there. Output is skipped if outPtr is the sentinel.
func (f *frame) writeOutput(m api.Module, outPtr uint32, outLenPtr uint32, data []byte) {
	if outPtr == sentinel {
		return
	}
	capacity, ok := m.Memory().ReadUint32Le(outLenPtr)
	if !ok {
		f.abort(ReasonOutOfBounds)
	}
	if uint32(len(data)) > capacity {
		f.abort(ReasonOutputBufferTooSmall)
	}
	f.write(m, outPtr, data)
	if !m.Memory().WriteUint32Le(outLenPtr, uint32(len(data))) {
		f.abort(ReasonOutOfBounds)
	}
}

// scaleBytes SCALE-encodes a fixed-width integer.
func scaleBytes(v any) []byte {
	encoded, _ := codec.Encode(v)
	return encoded
}

// storageKey reads a storage key from contract memory and maps it to its slot.
func (f *frame) storageKey(m api.Module, keyPtr uint32, keyLen uint32, fixed bool) string {
	if keyLen > f.schedule.MaxStorageKeyLen {
		f.abort(ReasonDecodingFailed)
	}
	return hashedKey(f.read(m, keyPtr, keyLen), fixed)
}

func (f *frame) setStorage(m api.Module, key string, valuePtr uint32, valueLen uint32) uint32 {
	if valueLen > f.schedule.MaxValueSize {
		f.abort(ReasonValueTooLarge)
	}
	value := f.read(m, valuePtr, valueLen)
	f.charge(f.schedule.StorageWrite)
	previous, existed := f.tx.setStorage(f.contract, key, value)
	if !existed {
		return sentinel
	}
	return uint32(previous)
}

func (f *frame) clearStorage(key string) uint32 {
	f.charge(f.schedule.StorageWrite)
	if _, ok := f.tx.getStorage(f.contract, key); !ok {
		return sentinel
	}
	previous, _ := f.tx.setStorage(f.contract, key, nil)
	return uint32(previous)
}

func (f *frame) getStorage(m api.Module, key string, outPtr uint32, outLenPtr uint32) uint32 {
	f.charge(f.schedule.StorageRead)
	value, ok := f.tx.getStorage(f.contract, key)
	if !ok {
		return returnKeyNotFound
	}
	f.charge(Weight{ProofSize: uint64(len(value))})
	f.writeOutput(m, outPtr, outLenPtr, value)
	return returnSuccess
}

func (f *frame) containsStorage(key string) uint32 {
	f.charge(f.schedule.StorageRead)
	value, ok := f.tx.getStorage(f.contract, key)
	if !ok {
		return sentinel
	}
	return uint32(len(value))
}

// hash reads the input, hashes it and writes the digest to outputPtr.
func (f *frame) hash(m api.Module, inputPtr uint32, inputLen uint32, outputPtr uint32, digest func([]byte) []byte) {
	input := f.read(m, inputPtr, inputLen)
	f.write(m, outputPtr, digest(input))
}

// hostFunction is a function exported to contracts under one or more names.
type hostFunction struct {
	module string
	names  []string
	fn     any
}

// aliased returns a name with and without the "seal_" prefix.
func aliased(name string) []string {
	return []string{name, "seal_" + name}
}

// hostFunctionTable lists the runtime interface available to contracts.
func hostFunctionTable() []hostFunction {
	return []hostFunction{
		{"seal0", aliased("input"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, f.input)
		}},
		{"seal0", aliased("return"), func(ctx context.Context, m api.Module, flags, dataPtr, dataLen uint32) {
			f := hostFrame(ctx)
			if ReturnFlags(flags)&^FlagRevert != 0 {
				f.abort(ReasonInvalidCallFlags)
			}
			f.ret = ExecReturn{Flags: ReturnFlags(flags), Data: f.read(m, dataPtr, dataLen)}
			f.returned = true
			panic(hostAbort{})
		}},
		{"seal0", aliased("caller"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, f.caller[:])
		}},
		{"seal0", aliased("address"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, f.contract[:])
		}},
		{"seal0", aliased("value_transferred"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, encodeBalance(f.value))
		}},
		{"seal0", aliased("balance"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, encodeBalance(f.tx.balance(f.contract)))
		}},
		{"seal0", aliased("minimum_balance"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, encodeBalance(f.schedule.ExistentialDeposit))
		}},
		{"seal0", aliased("block_number"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, scaleBytes(f.engine.blockNumber))
		}},
		{"seal0", aliased("now"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, scaleBytes(f.engine.timestamp))
		}},
		{"seal0", aliased("gas_left"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, scaleBytes(f.gas.left().RefTime))
		}},
		{"seal1", aliased("gas_left"), func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			f := hostFrame(ctx)
			f.writeOutput(m, outPtr, outLenPtr, f.gas.left().Encode())
		}},
		{"seal0", aliased("set_storage"), func(ctx context.Context, m api.Module, keyPtr, valuePtr, valueLen uint32) {
			f := hostFrame(ctx)
			f.setStorage(m, f.storageKey(m, keyPtr, 32, true), valuePtr, valueLen)
		}},
		{"seal1", aliased("set_storage"), func(ctx context.Context, m api.Module, keyPtr, valuePtr, valueLen uint32) uint32 {
			f := hostFrame(ctx)
			return f.setStorage(m, f.storageKey(m, keyPtr, 32, true), valuePtr, valueLen)
		}},
		{"seal2", aliased("set_storage"), func(ctx context.Context, m api.Module, keyPtr, keyLen, valuePtr, valueLen uint32) uint32 {
			f := hostFrame(ctx)
			return f.setStorage(m, f.storageKey(m, keyPtr, keyLen, false), valuePtr, valueLen)
		}},
		{"seal0", aliased("clear_storage"), func(ctx context.Context, m api.Module, keyPtr uint32) {
			f := hostFrame(ctx)
			f.clearStorage(f.storageKey(m, keyPtr, 32, true))
		}},
		{"seal1", aliased("clear_storage"), func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			f := hostFrame(ctx)
			return f.clearStorage(f.storageKey(m, keyPtr, keyLen, false))
		}},
		{"seal0", aliased("get_storage"), func(ctx context.Context, m api.Module, keyPtr, outPtr, outLenPtr uint32) uint32 {
			f := hostFrame(ctx)
			return f.getStorage(m, f.storageKey(m, keyPtr, 32, true), outPtr, outLenPtr)
		}},
		{"seal1", aliased("get_storage"), func(ctx context.Context, m api.Module, keyPtr, keyLen, outPtr, outLenPtr uint32) uint32 {
			f := hostFrame(ctx)
			return f.getStorage(m, f.storageKey(m, keyPtr, keyLen, false), outPtr, outLenPtr)
		}},
		{"seal0", aliased("contains_storage"), func(ctx context.Context, m api.Module, keyPtr uint32) uint32 {
			f := hostFrame(ctx)
			return f.containsStorage(f.storageKey(m, keyPtr, 32, true))
		}},
		{"seal1", aliased("contains_storage"), func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			f := hostFrame(ctx)
			return f.containsStorage(f.storageKey(m, keyPtr, keyLen, false))
		}},
		{"seal0", aliased("hash_blake2_256"), func(ctx context.Context, m api.Module, inputPtr, inputLen, outputPtr uint32) {
			hostFrame(ctx).hash(m, inputPtr, inputLen, outputPtr, func(b []byte) []byte {
				sum := blake2b.Sum256(b)
				return sum[:]
			})
		}},
		{"seal0", aliased("hash_blake2_128"), func(ctx context.Context, m api.Module, inputPtr, inputLen, outputPtr uint32) {
			hostFrame(ctx).hash(m, inputPtr, inputLen, outputPtr, func(b []byte) []byte {
				h, _ := blake2b.New(16, nil)
				h.Write(b)
				return h.Sum(nil)
			})
		}},
		{"seal0", aliased("hash_keccak_256"), func(ctx context.Context, m api.Module, inputPtr, inputLen, outputPtr uint32) {
			hostFrame(ctx).hash(m, inputPtr, inputLen, outputPtr, func(b []byte) []byte {
				return crypto.Keccak256(b)
			})
		}},
		{"seal0", aliased("hash_sha2_256"), func(ctx context.Context, m api.Module, inputPtr, inputLen, outputPtr uint32) {
			hostFrame(ctx).hash(m, inputPtr, inputLen, outputPtr, func(b []byte) []byte {
				sum := sha256.Sum256(b)
				return sum[:]
			})
		}},
		{"seal0", aliased("deposit_event"), func(ctx context.Context, m api.Module, topicsPtr, topicsLen, dataPtr, dataLen uint32) {
			f := hostFrame(ctx)
			var topics [][32]byte
			if topicsLen > 0 {
				if err := decodeScale(f.read(m, topicsPtr, topicsLen), &topics); err != nil {
					f.abort(ReasonDecodingFailed)
				}
			}
			if len(topics) > f.schedule.MaxEventTopics {
				f.abort(ReasonTooManyTopics)
			}
			f.tx.emit(Event{Contract: f.contract, Topics: topics, Data: f.read(m, dataPtr, dataLen)})
		}},
		{"seal0", aliased("debug_message"), func(ctx context.Context, m api.Module, strPtr, strLen uint32) uint32 {
			f := hostFrame(ctx)
			if !f.debug {
				return returnLoggingDisabled
			}
			f.debugBuf.Write(f.read(m, strPtr, strLen))
			return returnSuccess
		}},
		{"seal0", aliased("transfer"), func(ctx context.Context, m api.Module, accountPtr, accountLen, valuePtr, valueLen uint32) uint32 {
			f := hostFrame(ctx)
			if accountLen != 32 {
				f.abort(ReasonDecodingFailed)
			}
			var to accounts.AccountID
			copy(to[:], f.read(m, accountPtr, accountLen))
			value, err := decodeBalance(f.read(m, valuePtr, valueLen))
			if err != nil {
				f.abort(ReasonDecodingFailed)
			}
			if !f.tx.transfer(f.contract, to, value) {
				return returnTransferFailed
			}
			return returnSuccess
		}},
	}
}
