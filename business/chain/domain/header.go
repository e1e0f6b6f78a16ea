// Package domain contains the chain-tracking types: headers, the canonical
// window with its competing branches, and fork events.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

// Header is the block header both the fork detector and the gas oracle consume.
// Once observed it is never mutated; keepers store a Clone.
type Header struct {
	Number      uint64
	Hash        common.Hash
	ParentHash  common.Hash
	Timestamp   uint64 // seconds since epoch
	Difficulty  uint256.Int
	GasUsed     uint64
	GasLimit    uint64
	TxCount     uint32
	TxGasPrices []uint256.Int // wei, in block order
	BaseFee     *uint256.Int  // nil before London-style fee markets
}

// Validate checks the fields that do not depend on any other header.
func (h Header) Validate() error {
	if h.Hash == (common.Hash{}) {
		return apperror.Validation(apperror.CodeInvalidBlockHeader,
			fmt.Sprintf("block %d: empty hash", h.Number))
	}
	if h.ParentHash == (common.Hash{}) && h.Number != 0 {
		return apperror.Validation(apperror.CodeInvalidBlockHeader,
			fmt.Sprintf("block %d: empty parent hash", h.Number))
	}
	if h.GasUsed > h.GasLimit && h.GasLimit != 0 {
		return apperror.Validation(apperror.CodeInvalidBlockHeader,
			fmt.Sprintf("block %d: gas used %d exceeds limit %d", h.Number, h.GasUsed, h.GasLimit))
	}
	return nil
}

// ValidateChild checks h against its known parent.
func (h Header) ValidateChild(parent Header) error {
	if h.Number != parent.Number+1 {
		return apperror.Validation(apperror.CodeInvalidBlockHeader,
			fmt.Sprintf("block %d: parent %s has number %d", h.Number, parent.Hash.TerminalString(), parent.Number))
	}
	if h.Timestamp <= parent.Timestamp {
		return apperror.Validation(apperror.CodeInvalidBlockHeader,
			fmt.Sprintf("block %d: timestamp %d not after parent's %d", h.Number, h.Timestamp, parent.Timestamp))
	}
	return nil
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	c := h
	if h.TxGasPrices != nil {
		c.TxGasPrices = make([]uint256.Int, len(h.TxGasPrices))
		copy(c.TxGasPrices, h.TxGasPrices)
	}
	if h.BaseFee != nil {
		fee := *h.BaseFee
		c.BaseFee = &fee
	}
	return c
}

// Ref is the (number, hash) identity of a header.
type Ref struct {
	Number uint64
	Hash   common.Hash
}

// Ref returns the header's identity.
func (h Header) Ref() Ref {
	return Ref{Number: h.Number, Hash: h.Hash}
}

func (r Ref) String() string {
	return fmt.Sprintf("#%d [%s]", r.Number, r.Hash.TerminalString())
}
