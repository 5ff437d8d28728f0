package transport

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/service/indexer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	chainBlockResponse struct {
		Hash   string `json:"hash"`
		Height uint32 `json:"height"`
	}
	chainResponse struct {
		Blocks []chainBlockResponse `json:"blocks"`
	}
	blocksResponse struct {
		Hashes []string `json:"hashes"`
	}
	utxoResponse struct {
		TxID   string `json:"txid"`
		Vout   uint32 `json:"vout"`
		Value  int64  `json:"value"`
		Height uint32 `json:"height"`
	}
	utxosResponse struct {
		Address string         `json:"address"`
		Utxos   []utxoResponse `json:"utxos"`
	}
	balanceResponse struct {
		Address string `json:"address"`
		Balance int64  `json:"balance"`
	}
	txOutResponse struct {
		TxID      string `json:"txid"`
		Vout      uint32 `json:"vout"`
		Value     int64  `json:"value"`
		ScriptHex string `json:"script_hex"`
		Height    uint32 `json:"height"`
	}
	statusResponse struct {
		StableHeight   *uint32 `json:"stable_height,omitempty"`
		StableHash     string  `json:"stable_hash,omitempty"`
		AnchorHeight   uint32  `json:"anchor_height"`
		TipHeight      uint32  `json:"tip_height"`
		UnstableBlocks int     `json:"unstable_blocks"`
		CachedOutputs  int     `json:"cached_outputs"`
		Ingesting      bool    `json:"ingesting"`
	}
	errorResponse struct {
		Error string `json:"error"`
	}
)

// UtxoHandler serves the UTXO index over REST.
type UtxoHandler struct {
	index  UtxoIndex
	params *chaincfg.Params
	logger *zap.Logger
}

// NewUtxoHandler returns a UtxoHandler validating addresses against params.
func NewUtxoHandler(index UtxoIndex, params *chaincfg.Params, logger *zap.Logger) *UtxoHandler {
	return &UtxoHandler{index: index, params: params, logger: logger}
}

// Register adds the UTXO routes to mux.
func (h *UtxoHandler) Register(mux *gwruntime.ServeMux) error {
	routes := []struct {
		pattern string
		handler gwruntime.HandlerFunc
	}{
		{"/v1/utxo/status", h.status},
		{"/v1/utxo/main-chain", h.mainChain},
		{"/v1/utxo/blocks", h.blocks},
		{"/v1/utxo/chain/{tip}", h.chainWithTip},
		{"/v1/utxo/address/{address}/utxos", h.utxos},
		{"/v1/utxo/address/{address}/balance", h.balance},
		{"/v1/utxo/outpoint/{txid}/{vout}", h.txOut},
	}
	for _, route := range routes {
		if err := mux.HandlePath(http.MethodGet, route.pattern, route.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *UtxoHandler) status(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	status := h.index.Status()
	resp := statusResponse{
		AnchorHeight:   status.AnchorHeight,
		TipHeight:      status.TipHeight,
		UnstableBlocks: status.UnstableBlocks,
		CachedOutputs:  status.CachedOutputs,
		Ingesting:      status.Ingesting,
	}
	if status.HasStableTip {
		height := status.StableTip.Height
		resp.StableHeight = &height
		resp.StableHash = status.StableTip.Hash.String()
	}
	h.write(w, http.StatusOK, resp)
}

func (h *UtxoHandler) mainChain(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.write(w, http.StatusOK, toChainResponse(h.index.MainChain()))
}

func (h *UtxoHandler) blocks(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	blocks := h.index.Blocks()
	resp := blocksResponse{Hashes: make([]string, 0, len(blocks))}
	for _, hash := range blocks {
		resp.Hashes = append(resp.Hashes, hash.String())
	}
	h.write(w, http.StatusOK, resp)
}

func (h *UtxoHandler) chainWithTip(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	tip, err := chainhash.NewHashFromStr(params["tip"])
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid block hash")
		return
	}
	chain, ok := h.index.ChainWithTip(*tip)
	if !ok {
		h.fail(w, http.StatusNotFound, "block not found")
		return
	}
	h.write(w, http.StatusOK, toChainResponse(chain))
}

func (h *UtxoHandler) utxos(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	address, ok := h.address(w, params)
	if !ok {
		return
	}
	utxos, err := h.index.Utxos(address)
	if err != nil {
		h.internal(w, "get utxos", err)
		return
	}
	resp := utxosResponse{Address: address, Utxos: make([]utxoResponse, 0, len(utxos))}
	for _, u := range utxos {
		resp.Utxos = append(resp.Utxos, utxoResponse{
			TxID:   u.OutPoint.Hash.String(),
			Vout:   u.OutPoint.Index,
			Value:  u.Value,
			Height: u.Height,
		})
	}
	h.write(w, http.StatusOK, resp)
}

func (h *UtxoHandler) balance(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	address, ok := h.address(w, params)
	if !ok {
		return
	}
	balance, err := h.index.Balance(address)
	if err != nil {
		h.internal(w, "get balance", err)
		return
	}
	h.write(w, http.StatusOK, balanceResponse{Address: address, Balance: balance})
}

func (h *UtxoHandler) txOut(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	txid, err := chainhash.NewHashFromStr(params["txid"])
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid txid")
		return
	}
	vout, err := strconv.ParseUint(params["vout"], 10, 32)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid output index")
		return
	}

	op := wire.OutPoint{Hash: *txid, Index: uint32(vout)}
	entry, ok, err := h.index.TxOut(op)
	if err != nil {
		h.internal(w, "get tx out", err)
		return
	}
	if !ok {
		h.fail(w, http.StatusNotFound, "output not found")
		return
	}
	h.write(w, http.StatusOK, txOutResponse{
		TxID:      op.Hash.String(),
		Vout:      op.Index,
		Value:     entry.TxOut.Value,
		ScriptHex: hex.EncodeToString(entry.TxOut.PkScript),
		Height:    entry.Height,
	})
}

// address returns the canonical encoding of the address path parameter.
func (h *UtxoHandler) address(w http.ResponseWriter, params map[string]string) (string, bool) {
	decoded, err := btcutil.DecodeAddress(params["address"], h.params)
	if err != nil || !decoded.IsForNet(h.params) {
		h.fail(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return decoded.EncodeAddress(), true
}

func toChainResponse(chain []indexer.ChainBlock) chainResponse {
	resp := chainResponse{Blocks: make([]chainBlockResponse, 0, len(chain))}
	for _, b := range chain {
		resp.Blocks = append(resp.Blocks, chainBlockResponse{Hash: b.Hash.String(), Height: b.Height})
	}
	return resp
}

func (h *UtxoHandler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	h.fail(w, http.StatusInternalServerError, "internal error")
}

func (h *UtxoHandler) fail(w http.ResponseWriter, code int, message string) {
	h.write(w, code, errorResponse{Error: message})
}

func (h *UtxoHandler) write(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}
