// Package testutil provides block and transaction builders for tests.
package testutil

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// counter makes every built block, coinbase and address unique.
var counter atomic.Uint32

func next() uint32 {
	return counter.Add(1)
}

// BlockBuilder assembles blocks linked to a parent header.
type BlockBuilder struct {
	prev chainhash.Hash
	txs  []*wire.MsgTx
}

// Genesis starts a block with a zero previous-block reference.
func Genesis() *BlockBuilder {
	return &BlockBuilder{}
}

// WithPrev starts a block extending parent.
func WithPrev(parent *wire.MsgBlock) *BlockBuilder {
	return &BlockBuilder{prev: parent.BlockHash()}
}

// WithTransaction appends a transaction to the block.
func (b *BlockBuilder) WithTransaction(tx *wire.MsgTx) *BlockBuilder {
	b.txs = append(b.txs, tx)
	return b
}

// Build returns the block. Blocks without transactions get a unique empty coinbase.
func (b *BlockBuilder) Build() *wire.MsgBlock {
	n := next()
	txs := b.txs
	if len(txs) == 0 {
		txs = []*wire.MsgTx{Coinbase().Build()}
	}
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: b.prev,
			Timestamp: time.Unix(1231006505+int64(n), 0),
			Bits:      0x1d00ffff,
			Nonce:     n,
		},
	}
	for _, tx := range txs {
		block.AddTransaction(tx)
	}
	block.Header.MerkleRoot = txs[0].TxHash()
	return block
}

// TxBuilder assembles transactions.
type TxBuilder struct {
	tx *wire.MsgTx
}

// Coinbase starts a transaction with a single null-prevout input and a unique script.
func Coinbase() *TxBuilder {
	tx := wire.NewMsgTx(wire.TxVersion)
	sig := make([]byte, 4)
	binary.LittleEndian.PutUint32(sig, next())
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, math.MaxUint32), sig, nil))
	return &TxBuilder{tx: tx}
}

// NewTx starts a regular transaction.
func NewTx() *TxBuilder {
	return &TxBuilder{tx: wire.NewMsgTx(wire.TxVersion)}
}

// WithInput spends outpoint.
func (b *TxBuilder) WithInput(outpoint wire.OutPoint) *TxBuilder {
	op := outpoint
	b.tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	return b
}

// WithOutput appends an output paying value to script.
func (b *TxBuilder) WithOutput(script []byte, value int64) *TxBuilder {
	b.tx.AddTxOut(wire.NewTxOut(value, script))
	return b
}

// WithAddressOutput appends an output paying value to address.
func (b *TxBuilder) WithAddressOutput(address btcutil.Address, value int64) *TxBuilder {
	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		panic(err)
	}
	return b.WithOutput(script, value)
}

// Build returns the transaction.
func (b *TxBuilder) Build() *wire.MsgTx {
	return b.tx
}

// RandomP2PKHAddress returns a fresh pay-to-pubkey-hash address for params.
func RandomP2PKHAddress(params *chaincfg.Params) btcutil.Address {
	seed := make([]byte, 4)
	binary.BigEndian.PutUint32(seed, next())
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(seed), params)
	if err != nil {
		panic(err)
	}
	return addr
}

// OpReturnScript returns a provably unspendable null-data script.
func OpReturnScript() []byte {
	script, err := txscript.NullDataScript([]byte("unspendable"))
	if err != nil {
		panic(err)
	}
	return script
}
