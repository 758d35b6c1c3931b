package evm

import (
	"math"
	"math/big"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/params"
	"github.com/crytic/schlau/utils"
)

// genesisExtraData tags genesis blocks created by the sandbox.
var genesisExtraData = []byte("schlau")

// newChainConfig returns a copy of the geth test chain configuration with every fork up to Prague active from
// genesis.
func newChainConfig() (*params.ChainConfig, error) {
	chainConfig, err := utils.CopyChainConfig(params.TestChainConfig)
	if err != nil {
		return nil, err
	}

	forkTime := uint64(0)
	chainConfig.ShanghaiTime = &forkTime
	chainConfig.CancunTime = &forkTime
	chainConfig.PragueTime = &forkTime
	chainConfig.BlobScheduleConfig = params.DefaultBlobSchedule
	return chainConfig, nil
}

// newGenesis returns the genesis definition allocating the given balances.
func newGenesis(chainConfig *params.ChainConfig, alloc map[common.Address]*big.Int) *core.Genesis {
	genesis := &core.Genesis{
		Config:     chainConfig,
		ExtraData:  genesisExtraData,
		GasLimit:   math.MaxUint64,
		Difficulty: common.Big0,
		BaseFee:    big.NewInt(0),
		Alloc:      make(gethTypes.GenesisAlloc, len(alloc)),
	}
	for address, balance := range alloc {
		genesis.Alloc[address] = gethTypes.Account{Balance: new(big.Int).Set(balance)}
	}
	return genesis
}

// blockContext describes the block every operation of a sandbox executes in. Block hashes are not tracked, so
// BLOCKHASH always returns the zero hash.
func blockContext(number uint64, time uint64) vm.BlockContext {
	var random common.Hash
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash: func(uint64) common.Hash {
			return common.Hash{}
		},
		Coinbase:    common.Address{},
		BlockNumber: new(big.Int).SetUint64(number),
		Time:        time,
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		BlobBaseFee: big.NewInt(1),
		GasLimit:    math.MaxUint64,
		Random:      &random,
	}
}
