package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/storage"
)

const metaPrefix = 'm'

var (
	tipKey       = []byte{metaPrefix, 't'}
	ingestingKey = []byte{metaPrefix, 'i'}
)

var (
	// ErrIndexInconsistent is returned when a previous run stopped in the middle of ingesting a block.
	ErrIndexInconsistent = errors.New("utxo index left inconsistent by an interrupted ingestion")
	errMalformedMeta     = errors.New("malformed index metadata")
)

// Tip identifies the last block fully ingested into the stable index.
type Tip struct {
	Height uint32
	Hash   chainhash.Hash
}

func encodeTip(tip Tip) []byte {
	buf := make([]byte, 4+chainhash.HashSize)
	binary.BigEndian.PutUint32(buf, tip.Height)
	copy(buf[4:], tip.Hash[:])
	return buf
}

func decodeTip(value []byte) (Tip, error) {
	if len(value) != 4+chainhash.HashSize {
		return Tip{}, fmt.Errorf("tip of %d bytes: %w", len(value), errMalformedMeta)
	}
	var tip Tip
	tip.Height = binary.BigEndian.Uint32(value)
	copy(tip.Hash[:], value[4:])
	return tip, nil
}

func readTip(store storage.Store, key []byte) (Tip, bool, error) {
	value, err := store.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return Tip{}, false, nil
	}
	if err != nil {
		return Tip{}, false, err
	}
	tip, err := decodeTip(value)
	if err != nil {
		return Tip{}, false, err
	}
	return tip, true, nil
}

// ReadTip returns the stable tip recorded in store, if any.
func ReadTip(store storage.Store) (Tip, bool, error) {
	tip, ok, err := readTip(store, tipKey)
	if err != nil {
		return Tip{}, false, fmt.Errorf("read stable tip: %w", err)
	}
	return tip, ok, nil
}

// recoverMeta validates the metadata left by a previous run and returns its stable tip.
// A marker naming the recorded tip means the run stopped after the block was
// fully ingested, so the marker is simply cleared.
func recoverMeta(store storage.Store) (Tip, bool, error) {
	tip, hasTip, err := ReadTip(store)
	if err != nil {
		return Tip{}, false, err
	}
	marker, ingesting, err := readTip(store, ingestingKey)
	if err != nil {
		return Tip{}, false, fmt.Errorf("read ingestion marker: %w", err)
	}
	if !ingesting {
		return tip, hasTip, nil
	}
	if !hasTip || marker != tip {
		return Tip{}, false, fmt.Errorf("block %s at height %d: %w", marker.Hash, marker.Height, ErrIndexInconsistent)
	}
	if err = store.Delete(ingestingKey); err != nil {
		return Tip{}, false, fmt.Errorf("clear ingestion marker: %w", err)
	}
	return tip, true, nil
}

func beginIngestion(store storage.Store, block Tip) error {
	if err := store.Put(ingestingKey, encodeTip(block)); err != nil {
		return fmt.Errorf("write ingestion marker: %w", err)
	}
	return nil
}

func commitIngestion(store storage.Store, block Tip) error {
	if err := store.Put(tipKey, encodeTip(block)); err != nil {
		return fmt.Errorf("write stable tip: %w", err)
	}
	if err := store.Delete(ingestingKey); err != nil {
		return fmt.Errorf("clear ingestion marker: %w", err)
	}
	return nil
}
