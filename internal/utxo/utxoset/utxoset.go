// Package utxoset maintains the stable UTXO index and its address index, applying
// transactions in budget-bounded, resumable slices.
package utxoset

import (
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/budget"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/storage"
)

// DefaultSliceThreshold is the budget after which ingestion pauses.
const DefaultSliceThreshold uint64 = 4_000_000_000

// DefaultDuplicateTxIDs are the transactions that appear twice in Bitcoin mainnet history
// (see BIP-30). Re-inserting their outputs overwrites the earlier entry.
var DefaultDuplicateTxIDs = []string{
	"d5d27987d2a3dfc724e359870c6644b40e497bdc0589a033220fe15429d88599",
	"e3bf3d07d4b0375638d5f1db5255fe07ba2c4cb067cd81b84ee974b6585fb468",
}

type (
	// AddressResolver maps an output script to a validated address string.
	AddressResolver interface {
		Resolve(pkScript []byte) (string, bool)
	}
)

// Entry is an unspent output with the height of the block that created it.
type Entry struct {
	TxOut  wire.TxOut
	Height uint32
}

// Slicing is the outcome of an ingestion step: either done, or paused at a cursor.
type Slicing struct {
	Paused bool
	Input  int
	Output int
}

// Done reports a fully ingested transaction.
var Done = Slicing{}

// Paused returns a cursor to resume ingestion from.
func Paused(input, output int) Slicing {
	return Slicing{Paused: true, Input: input, Output: output}
}

// Config configures a UtxoSet.
type Config struct {
	Store          storage.Store
	Resolver       AddressResolver
	SliceThreshold uint64
	DuplicateTxIDs []chainhash.Hash
}

// UtxoSet is the stable UTXO index.
type UtxoSet struct {
	store      storage.Store
	resolver   AddressResolver
	threshold  uint64
	duplicates map[chainhash.Hash]struct{}
}

// ParseTxIDs parses hex transaction ids.
func ParseTxIDs(ids []string) ([]chainhash.Hash, error) {
	result := make([]chainhash.Hash, 0, len(ids))
	for _, id := range ids {
		hash, err := chainhash.NewHashFromStr(id)
		if err != nil {
			return nil, fmt.Errorf("parse txid %q: %w", id, err)
		}
		result = append(result, *hash)
	}
	return result, nil
}

// New creates a UtxoSet on top of cfg.Store.
func New(cfg Config) (*UtxoSet, error) {
	if cfg.Store == nil {
		return nil, errors.New("utxo set store is required")
	}
	threshold := cfg.SliceThreshold
	if threshold == 0 {
		threshold = DefaultSliceThreshold
	}

	duplicates := make(map[chainhash.Hash]struct{}, len(cfg.DuplicateTxIDs))
	for _, id := range cfg.DuplicateTxIDs {
		duplicates[id] = struct{}{}
	}

	return &UtxoSet{
		store:      cfg.Store,
		resolver:   cfg.Resolver,
		threshold:  threshold,
		duplicates: duplicates,
	}, nil
}

// IngestTx applies tx at height, starting at the given input and output positions.
// It removes spent outputs first, then inserts created outputs, and pauses at the
// first position where meter reports the threshold was reached.
//
// Callers must resume with exactly the returned cursor until Done is returned.
// Store errors leave the index partially updated and must be treated as fatal.
func (u *UtxoSet) IngestTx(meter budget.Meter, tx *wire.MsgTx, height uint32, startInput, startOutput int) (Slicing, error) {
	input, paused, err := u.removeInputs(meter, tx, startInput)
	if err != nil {
		return Slicing{}, err
	}
	if paused {
		return Paused(input, 0), nil
	}

	output, paused, err := u.insertOutputs(meter, tx, height, startOutput)
	if err != nil {
		return Slicing{}, err
	}
	if paused {
		return Paused(len(tx.TxIn), output), nil
	}
	return Done, nil
}

func (u *UtxoSet) exhausted(meter budget.Meter) bool {
	return meter.Consumed() >= u.threshold
}

func (u *UtxoSet) removeInputs(meter budget.Meter, tx *wire.MsgTx, start int) (int, bool, error) {
	if blockchain.IsCoinBaseTx(tx) {
		return 0, false, nil
	}

	for i := start; i < len(tx.TxIn); i++ {
		if u.exhausted(meter) {
			return i, true, nil
		}

		op := tx.TxIn[i].PreviousOutPoint
		entry, ok, err := u.TxOut(op)
		if err != nil {
			return 0, false, fmt.Errorf("lookup outpoint %s: %w", op, err)
		}
		if !ok {
			raise(FaultMissingOutPoint, op, 0, "")
		}
		if address, ok := u.resolve(entry.TxOut.PkScript); ok {
			key := addressKey(address, entry.Height, op)
			found, err := u.store.Has(key)
			if err != nil {
				return 0, false, fmt.Errorf("lookup address entry %s: %w", op, err)
			}
			if !found {
				raise(FaultMissingAddressEntry, op, entry.Height, address)
			}
			if err = u.store.Delete(key); err != nil {
				return 0, false, fmt.Errorf("remove address entry %s: %w", op, err)
			}
		}
		if err = u.store.Delete(utxoKey(op)); err != nil {
			return 0, false, fmt.Errorf("remove outpoint %s: %w", op, err)
		}
	}
	return len(tx.TxIn), false, nil
}

func (u *UtxoSet) insertOutputs(meter budget.Meter, tx *wire.MsgTx, height uint32, start int) (int, bool, error) {
	txid := tx.TxHash()
	for i := start; i < len(tx.TxOut); i++ {
		if u.exhausted(meter) {
			return i, true, nil
		}

		out := tx.TxOut[i]
		if IsProvablyUnspendable(out.PkScript) {
			continue
		}
		if i > math.MaxUint32 {
			return 0, false, fmt.Errorf("tx %s output index %d overflows", txid, i)
		}
		if err := u.InsertUtxo(wire.OutPoint{Hash: txid, Index: uint32(i)}, out, height); err != nil {
			return 0, false, err
		}
	}
	return len(tx.TxOut), false, nil
}

// InsertUtxo inserts a single unspent output at height.
func (u *UtxoSet) InsertUtxo(op wire.OutPoint, out *wire.TxOut, height uint32) error {
	previous, exists, err := u.TxOut(op)
	if err != nil {
		return fmt.Errorf("lookup outpoint %s: %w", op, err)
	}
	if exists {
		if _, allowed := u.duplicates[op.Hash]; !allowed {
			raise(FaultDuplicateOutPoint, op, height, "")
		}
		if address, ok := u.resolve(previous.TxOut.PkScript); ok {
			if err = u.store.Delete(addressKey(address, previous.Height, op)); err != nil {
				return fmt.Errorf("remove overwritten address entry %s: %w", op, err)
			}
		}
	}

	if address, ok := u.resolve(out.PkScript); ok {
		if err = u.store.Put(addressKey(address, height, op), nil); err != nil {
			return fmt.Errorf("insert address entry %s: %w", op, err)
		}
	}
	if err = u.store.Put(utxoKey(op), utxoValue(out, height)); err != nil {
		return fmt.Errorf("insert outpoint %s: %w", op, err)
	}
	return nil
}

func (u *UtxoSet) resolve(pkScript []byte) (string, bool) {
	if u.resolver == nil {
		return "", false
	}
	address, ok := u.resolver.Resolve(pkScript)
	if !ok || address == "" || len(address) > math.MaxUint8 {
		return "", false
	}
	return address, true
}

// TxOut returns the stable entry for op.
func (u *UtxoSet) TxOut(op wire.OutPoint) (Entry, bool, error) {
	value, err := u.store.Get(utxoKey(op))
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry, err := decodeUtxoValue(value)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode outpoint %s: %w", op, err)
	}
	return entry, true, nil
}

// ForEach calls fn for every stable entry in outpoint key order until fn returns false.
func (u *UtxoSet) ForEach(fn func(op wire.OutPoint, entry Entry) bool) error {
	var decodeErr error
	err := u.store.Iterate([]byte{utxoPrefix}, func(key, value []byte) bool {
		if len(key) != 1+outPointSize {
			decodeErr = fmt.Errorf("utxo key of %d bytes: %w", len(key), errMalformedKey)
			return false
		}
		entry, err := decodeUtxoValue(value)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(readOutPoint(key[1:]), entry)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// Len returns the number of stable entries.
func (u *UtxoSet) Len() (int, error) {
	n := 0
	err := u.store.Iterate([]byte{utxoPrefix}, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// UtxosByAddress returns up to limit stable outputs owned by address, most recent first.
// A non-positive limit returns all of them.
func (u *UtxoSet) UtxosByAddress(address string, limit int) ([]model.Utxo, error) {
	type ref struct {
		op     wire.OutPoint
		height uint32
	}
	var (
		refs      []ref
		decodeErr error
	)
	err := u.store.Iterate(addressPrefixKey(address), func(key, _ []byte) bool {
		_, height, op, err := decodeAddressKey(key)
		if err != nil {
			decodeErr = err
			return false
		}
		refs = append(refs, ref{op: op, height: height})
		return limit <= 0 || len(refs) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("iterate address %s: %w", address, err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("iterate address %s: %w", address, decodeErr)
	}

	utxos := make([]model.Utxo, 0, len(refs))
	for _, r := range refs {
		entry, ok, err := u.TxOut(r.op)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("address %s references missing outpoint %s", address, r.op)
		}
		utxos = append(utxos, model.Utxo{OutPoint: r.op, Value: entry.TxOut.Value, Height: r.height})
	}
	return utxos, nil
}

// Resolve exposes the configured address resolution, including its validation.
func (u *UtxoSet) Resolve(pkScript []byte) (string, bool) {
	return u.resolve(pkScript)
}

// IsProvablyUnspendable reports whether an output can never be spent and is therefore never indexed.
// On top of txscript's check (OP_RETURN, oversize or unparsable scripts) a script whose
// first opcode is reserved or undefined fails on execution regardless of the input.
func IsProvablyUnspendable(pkScript []byte) bool {
	if txscript.IsUnspendable(pkScript) {
		return true
	}
	if len(pkScript) == 0 {
		return false
	}
	switch op := pkScript[0]; op {
	case txscript.OP_RESERVED, txscript.OP_VER, txscript.OP_VERIF, txscript.OP_VERNOTIF,
		txscript.OP_RESERVED1, txscript.OP_RESERVED2:
		return true
	default:
		return op >= txscript.OP_CHECKSIGADD // 0xba, formerly OP_UNKNOWN186
	}
}
