package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/fd1az/mordor-monitor/business/blockchain/domain"
	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
)

// toHeader converts a full block into the header the detector and oracle use.
func toHeader(block *types.Block) chain.Header {
	h := chain.Header{
		Number:     block.NumberU64(),
		Hash:       block.Hash(),
		ParentHash: block.ParentHash(),
		Timestamp:  block.Time(),
		Difficulty: toUint256(block.Difficulty()),
		GasUsed:    block.GasUsed(),
		GasLimit:   block.GasLimit(),
		TxCount:    uint32(len(block.Transactions())),
	}

	if fee := block.BaseFee(); fee != nil {
		v := toUint256(fee)
		h.BaseFee = &v
	}

	txs := block.Transactions()
	if len(txs) > 0 {
		h.TxGasPrices = make([]uint256.Int, len(txs))
		for i, tx := range txs {
			h.TxGasPrices[i] = effectiveGasPrice(tx, block.BaseFee())
		}
	}
	return h
}

// effectiveGasPrice is what the sender actually pays per gas: the legacy
// price, or base fee plus the capped tip for dynamic-fee transactions.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) uint256.Int {
	if baseFee == nil || tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType {
		return toUint256(tx.GasPrice())
	}

	tip := new(big.Int).Sub(tx.GasFeeCap(), baseFee)
	if tip.Cmp(tx.GasTipCap()) > 0 {
		tip = tx.GasTipCap()
	}
	if tip.Sign() < 0 {
		tip = new(big.Int)
	}
	return toUint256(new(big.Int).Add(baseFee, tip))
}

func toTxSummaries(block *types.Block, signer types.Signer) []domain.TxSummary {
	txs := block.Transactions()
	out := make([]domain.TxSummary, len(txs))
	for i, tx := range txs {
		out[i] = domain.TxSummary{
			Hash:     tx.Hash(),
			To:       tx.To(),
			Gas:      tx.Gas(),
			GasPrice: effectiveGasPrice(tx, block.BaseFee()),
		}
		if signer != nil {
			if from, err := types.Sender(signer, tx); err == nil {
				out[i].From = from
			}
		}
	}
	return out
}

// toUint256 saturates on overflow; no header field approaches 2^256.
func toUint256(v *big.Int) uint256.Int {
	if v == nil || v.Sign() <= 0 {
		return uint256.Int{}
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		var top uint256.Int
		top.SetAllOne()
		return top
	}
	return *u
}
