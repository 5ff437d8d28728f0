package utxoset

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// FaultKind classifies an integrity fault.
type FaultKind int

const (
	// FaultMissingOutPoint means an input spends an outpoint absent from the UTXO map.
	FaultMissingOutPoint FaultKind = iota + 1
	// FaultMissingAddressEntry means a spent output has no address index entry.
	FaultMissingAddressEntry
	// FaultDuplicateOutPoint means an outpoint was inserted twice and its txid is not allow-listed.
	FaultDuplicateOutPoint
)

func (k FaultKind) String() string {
	switch k {
	case FaultMissingOutPoint:
		return "missing outpoint"
	case FaultMissingAddressEntry:
		return "missing address entry"
	case FaultDuplicateOutPoint:
		return "duplicate outpoint"
	default:
		return "unknown fault"
	}
}

// IntegrityFault is raised with panic when the index reaches a state that upstream
// validation should have made impossible. It is never returned as an error.
type IntegrityFault struct {
	Kind     FaultKind
	OutPoint wire.OutPoint
	Height   uint32
	Address  string
}

func (f *IntegrityFault) Error() string {
	if f.Address != "" {
		return fmt.Sprintf("utxo index integrity fault: %s: outpoint %s address %s height %d", f.Kind, f.OutPoint, f.Address, f.Height)
	}
	return fmt.Sprintf("utxo index integrity fault: %s: outpoint %s height %d", f.Kind, f.OutPoint, f.Height)
}

func raise(kind FaultKind, op wire.OutPoint, height uint32, address string) {
	panic(&IntegrityFault{Kind: kind, OutPoint: op, Height: height, Address: address})
}
