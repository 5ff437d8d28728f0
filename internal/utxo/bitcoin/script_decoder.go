package bitcoin

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

// ScriptDecoder resolves output scripts to addresses of a single network.
type ScriptDecoder struct {
	params *chaincfg.Params
}

// NewScriptDecoder initializes a decoder for extracting addresses using params of the provided network.
func NewScriptDecoder(network model.Network) (*ScriptDecoder, error) {
	params, err := ChainParams(network)
	if err != nil {
		return nil, err
	}
	return &ScriptDecoder{params: params}, nil
}

// Params returns the chain parameters the decoder was built for.
func (d *ScriptDecoder) Params() *chaincfg.Params {
	return d.params
}

// Resolve returns the address paid by pkScript. Only standard single-address
// scripts resolve; the encoded address must also decode back to itself on the
// decoder's network.
func (d *ScriptDecoder) Resolve(pkScript []byte) (string, bool) {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, d.params)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	switch class {
	case txscript.PubKeyHashTy,
		txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy,
		txscript.WitnessV0ScriptHashTy,
		txscript.WitnessV1TaprootTy:
	default:
		return "", false
	}

	encoded := addrs[0].EncodeAddress()
	decoded, err := btcutil.DecodeAddress(encoded, d.params)
	if err != nil || !decoded.IsForNet(d.params) || decoded.EncodeAddress() != encoded {
		return "", false
	}
	return encoded, true
}

// ScriptType returns the standard class name of pkScript, e.g. "pubkeyhash".
func ScriptType(pkScript []byte) string {
	return txscript.GetScriptClass(pkScript).String()
}

// ChainParams maps a network name to btcd chain parameters.
func ChainParams(network model.Network) (*chaincfg.Params, error) {
	switch strings.ToLower(string(network)) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
