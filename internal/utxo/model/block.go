// Package model defines domain models for UTXO indexing.
package model

import "time"

// BlockStatus describes the finality status of an archived block record.
type BlockStatus string

var (
	// BlockFinalized marks a block that became stable and was committed to the UTXO index.
	BlockFinalized BlockStatus = "finalized"
)

// Block represents a finalized block row archived to ClickHouse.
type Block struct {
	Coin       Coin
	Network    Network
	Height     uint64
	Hash       string
	PrevHash   string
	Timestamp  time.Time
	Version    int32
	MerkleRoot string
	Bits       uint32
	Nonce      uint32
	Size       uint32
	TXCount    uint32
	Status     BlockStatus
}

// TransactionOutput represents an output created by a finalized block.
type TransactionOutput struct {
	Coin        Coin
	Network     Network
	BlockHeight uint64
	BlockTime   time.Time
	TxID        string
	Index       uint32
	Value       int64
	ScriptType  string
	ScriptHex   string
	Address     string
}

// FinalizedBlock groups a finalized block with its outputs for batch archiving.
type FinalizedBlock struct {
	Block   Block
	Outputs []TransactionOutput
}
