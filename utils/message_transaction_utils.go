package utils

import (
	"math/big"

	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/types"
)

// MessageToTransaction wraps msg in an unsigned dynamic fee transaction, for use as the transaction context (hash,
// log attribution) of a message executed directly through core.ApplyMessage. The sender is stored in the S signature
// value, so identical messages from different senders get different hashes.
func MessageToTransaction(chainID *big.Int, msg *core.Message) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:    chainID,
		Nonce:      msg.Nonce,
		GasTipCap:  msg.GasTipCap,
		GasFeeCap:  msg.GasFeeCap,
		Gas:        msg.GasLimit,
		To:         msg.To,
		Value:      msg.Value,
		Data:       msg.Data,
		AccessList: msg.AccessList,
		S:          msg.From.Big(),
	})
}
