// Package domain contains node-facing types for the blockchain context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
)

// BlockDetails is a header plus the fields the CLI shows for a single block.
type BlockDetails struct {
	Header chain.Header
	Miner  common.Address
	Size   uint64
	Txs    []TxSummary
}

// TxSummary is one transaction line in a block listing.
type TxSummary struct {
	Hash     common.Hash
	From     common.Address
	To       *common.Address // nil for contract creation
	Gas      uint64
	GasPrice uint256.Int // effective price paid, wei
}

// NodeInfo is a point-in-time view of the node.
type NodeInfo struct {
	ChainID     uint64
	Latest      chain.Header
	Syncing     bool
	GasPrice    GasPrice
	State       ConnectionState
	CollectedAt time.Time
}

// ConnectionState represents the state of the node connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDegraded     ConnectionState = "degraded" // circuit open
)
