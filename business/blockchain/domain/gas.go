package domain

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)

// GasPrice is a node-suggested price with its gwei rendering.
type GasPrice struct {
	Wei  uint256.Int
	Gwei decimal.Decimal
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei uint256.Int) GasPrice {
	return GasPrice{Wei: wei, Gwei: WeiToGwei(wei)}
}

// WeiToGwei converts exactly; rounding is left to the presenter.
func WeiToGwei(wei uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei.ToBig(), 0).Div(weiPerGwei)
}
