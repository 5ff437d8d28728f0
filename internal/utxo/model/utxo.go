package model

import "github.com/btcsuite/btcd/wire"

// Utxo is an unspent output owned by an address, as returned by address queries.
type Utxo struct {
	OutPoint wire.OutPoint
	Value    int64
	Height   uint32
}
