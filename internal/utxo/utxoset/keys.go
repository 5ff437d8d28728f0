package utxoset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	utxoPrefix    byte = 'u'
	addressPrefix byte = 'a'

	outPointSize = chainhash.HashSize + 4
)

var errMalformedKey = errors.New("malformed key")

func putOutPoint(dst []byte, op wire.OutPoint) {
	copy(dst, op.Hash[:])
	binary.BigEndian.PutUint32(dst[chainhash.HashSize:], op.Index)
}

func readOutPoint(src []byte) wire.OutPoint {
	var op wire.OutPoint
	copy(op.Hash[:], src[:chainhash.HashSize])
	op.Index = binary.BigEndian.Uint32(src[chainhash.HashSize:])
	return op
}

// utxoKey is prefix | txid | vout.
func utxoKey(op wire.OutPoint) []byte {
	key := make([]byte, 1+outPointSize)
	key[0] = utxoPrefix
	putOutPoint(key[1:], op)
	return key
}

// utxoValue is height | value | pkScript.
func utxoValue(out *wire.TxOut, height uint32) []byte {
	value := make([]byte, 12+len(out.PkScript))
	binary.BigEndian.PutUint32(value, height)
	binary.BigEndian.PutUint64(value[4:], uint64(out.Value))
	copy(value[12:], out.PkScript)
	return value
}

func decodeUtxoValue(value []byte) (Entry, error) {
	if len(value) < 12 {
		return Entry{}, fmt.Errorf("utxo value of %d bytes: %w", len(value), errMalformedKey)
	}
	script := make([]byte, len(value)-12)
	copy(script, value[12:])
	return Entry{
		Height: binary.BigEndian.Uint32(value),
		TxOut: wire.TxOut{
			Value:    int64(binary.BigEndian.Uint64(value[4:])),
			PkScript: script,
		},
	}, nil
}

// addressPrefixKey is prefix | len(address) | address.
func addressPrefixKey(address string) []byte {
	key := make([]byte, 0, 2+len(address))
	key = append(key, addressPrefix, byte(len(address)))
	return append(key, address...)
}

// addressKey is addressPrefixKey | inverted height | txid | vout.
// The height is inverted so that ascending key order yields descending height.
func addressKey(address string, height uint32, op wire.OutPoint) []byte {
	prefix := addressPrefixKey(address)
	key := make([]byte, len(prefix)+4+outPointSize)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], math.MaxUint32-height)
	putOutPoint(key[len(prefix)+4:], op)
	return key
}

func decodeAddressKey(key []byte) (string, uint32, wire.OutPoint, error) {
	if len(key) < 2 || key[0] != addressPrefix {
		return "", 0, wire.OutPoint{}, errMalformedKey
	}
	n := int(key[1])
	if len(key) != 2+n+4+outPointSize {
		return "", 0, wire.OutPoint{}, errMalformedKey
	}
	address := string(key[2 : 2+n])
	height := math.MaxUint32 - binary.BigEndian.Uint32(key[2+n:])
	return address, height, readOutPoint(key[2+n+4:]), nil
}
