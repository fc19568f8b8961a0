package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/escrow"
	"github.com/tolelom/pazaak/fairness"
	"github.com/tolelom/pazaak/indexer"
	"github.com/tolelom/pazaak/metrics"
	"github.com/tolelom/pazaak/room"
	"github.com/tolelom/pazaak/vm"
)

// DefaultRoomCacheSize bounds the finished-room cache.
const DefaultRoomCacheSize = 1024

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc       *core.Blockchain
	mempool  *core.Mempool
	state    core.State
	indexer  *indexer.Indexer
	finished *lru.Cache // room id -> *core.GameRoom; finished rooms never change
}

// NewHandler creates an RPC Handler. state must be a committed view such as
// storage.StateDB.Committed; the handler caches finished rooms it reads from
// it, so it must never observe a block that has not been stored.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer) *Handler {
	cache, err := lru.New(DefaultRoomCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, finished: cache}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())
	case "getBlock":
		return h.getBlock(req)
	case "getBalance":
		return h.getBalance(req)
	case "getTokenAccount":
		return h.getTokenAccount(req)
	case "getTokenBalance":
		return h.getTokenBalance(req)
	case "getMint":
		return h.getMint(req)
	case "getConfig":
		return h.getConfig(req)
	case "getRoom":
		return h.getRoom(req)
	case "getRoomVault":
		return h.getRoomVault(req)
	case "getRoomsByPlayer":
		return h.getRoomsByPlayer(req)
	case "replayRoom":
		return h.replayRoom(req)
	case "getTxResult":
		return h.getTxResult(req)
	case "getMetrics":
		return okResponse(req.ID, metrics.Snapshot())
	case "sendTx":
		return h.sendTx(req)
	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func decode(req Request, v any) *Response {
	if len(req.Params) == 0 {
		req.Params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return &resp
	}
	return nil
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return failResponse(req.ID, err)
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, BalanceView{Address: params.Address, Balance: acc.Balance, Nonce: acc.Nonce})
}

func (h *Handler) getTokenAccount(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	ta, err := h.state.GetTokenAccount(params.Address)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, ta)
}

// getTokenBalance reads owner's canonical account; mint defaults to the
// configured stake mint.
func (h *Handler) getTokenBalance(req Request) Response {
	var params struct {
		Owner string `json:"owner"`
		Mint  string `json:"mint"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.Owner == "" {
		return errResponse(req.ID, CodeInvalidParams, "owner is required")
	}
	if params.Mint == "" {
		cfg, err := room.LoadConfig(h.state)
		if err != nil {
			return failResponse(req.ID, err)
		}
		params.Mint = cfg.StakeMint
	}
	view := TokenBalanceView{
		Owner:   params.Owner,
		Mint:    params.Mint,
		Account: core.TokenAccountAddress(params.Owner, params.Mint),
	}
	ta, err := h.state.GetTokenAccount(view.Account)
	switch {
	case err == nil:
		view.Amount = ta.Amount
	case !errors.Is(err, core.ErrNotFound):
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, view)
}

func (h *Handler) getMint(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	m, err := h.state.GetMint(params.ID)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, m)
}

func (h *Handler) getConfig(req Request) Response {
	cfg, err := room.LoadConfig(h.state)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, cfg)
}

type roomParams struct {
	RoomID *uint64 `json:"room_id"`
}

func (h *Handler) roomParam(req Request) (uint64, *Response) {
	var params roomParams
	if resp := decode(req, &params); resp != nil {
		return 0, resp
	}
	if params.RoomID == nil {
		resp := errResponse(req.ID, CodeInvalidParams, "room_id is required")
		return 0, &resp
	}
	return *params.RoomID, nil
}

func (h *Handler) loadRoom(id uint64) (*core.GameRoom, error) {
	if cached, ok := h.finished.Get(id); ok {
		return cached.(*core.GameRoom), nil
	}
	r, err := room.Get(h.state, id)
	if err != nil {
		return nil, err
	}
	if r.State.Phase() == core.PhaseFinished {
		h.finished.Add(id, r)
	}
	return r, nil
}

func (h *Handler) getRoom(req Request) Response {
	id, resp := h.roomParam(req)
	if resp != nil {
		return *resp
	}
	r, err := h.loadRoom(id)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, RoomView{Room: r, Status: RoomStatus(r)})
}

func (h *Handler) getRoomVault(req Request) Response {
	id, resp := h.roomParam(req)
	if resp != nil {
		return *resp
	}
	cfg, err := room.LoadConfig(h.state)
	if err != nil {
		return failResponse(req.ID, err)
	}
	r, err := h.loadRoom(id)
	if err != nil {
		return failResponse(req.ID, err)
	}
	custodian, err := escrow.New(nil, *cfg)
	if err != nil {
		return failResponse(req.ID, err)
	}
	view := VaultView{RoomID: id, Mode: cfg.EscrowMode, Vault: custodian.Vault(id)}
	if ta, err := h.state.GetTokenAccount(view.Vault.Address); err == nil {
		view.Balance = ta.Amount
	}
	switch s := r.State.(type) {
	case *core.CreatedRoom:
		view.Owed = s.TokenBid
	case *core.BusyRoom:
		view.Owed = 2 * s.TokenBid
	}
	return okResponse(req.ID, view)
}

func (h *Handler) getRoomsByPlayer(req Request) Response {
	var params struct {
		Player string `json:"player"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.Player == "" {
		return errResponse(req.ID, CodeInvalidParams, "player is required")
	}
	ids, err := h.indexer.GetRoomsByPlayer(params.Player)
	if err != nil {
		return failResponse(req.ID, err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	return okResponse(req.ID, ids)
}

// replayRoom recomputes a finished room's match from recorded data. The
// preimage defaults to the one revealed in the finishing transaction.
func (h *Handler) replayRoom(req Request) Response {
	var params struct {
		RoomID   *uint64 `json:"room_id"`
		Preimage string  `json:"preimage"` // hex
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.RoomID == nil {
		return errResponse(req.ID, CodeInvalidParams, "room_id is required")
	}
	r, err := h.loadRoom(*params.RoomID)
	if err != nil {
		return failResponse(req.ID, err)
	}
	fin, ok := r.State.(*core.FinishedRoom)
	if !ok {
		return failResponse(req.ID, fmt.Errorf("%w: room %d is %s", core.ErrWrongState, r.ID, r.State.Phase()))
	}
	if params.Preimage == "" {
		reveal, err := h.indexer.GetReveal(r.ID)
		if err != nil {
			return failResponse(req.ID, fmt.Errorf("no recorded reveal for room %d: %w", r.ID, err))
		}
		params.Preimage = reveal.RevealedPreimage
	}
	preimage, err := hex.DecodeString(params.Preimage)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "preimage must be hex")
	}
	if err := fairness.Verify(preimage, fin.CommitmentHash); err != nil {
		return failResponse(req.ID, err)
	}
	match := fairness.Replay(preimage, fin.FairnessSeed, fin.Seed)
	return okResponse(req.ID, ReplayView{
		RoomID:         r.ID,
		Match:          match,
		RecordedWinner: fin.Winner,
		Consistent:     match.Winner == fin.Winner,
	})
}

func (h *Handler) getTxResult(req Request) Response {
	var params struct {
		TxID string `json:"tx_id"`
	}
	if resp := decode(req, &params); resp != nil {
		return *resp
	}
	if params.TxID == "" {
		return errResponse(req.ID, CodeInvalidParams, "tx_id is required")
	}
	res, err := h.indexer.GetTxResult(params.TxID)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, res)
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if !vm.Known(tx.Type) {
		return failResponse(req.ID, fmt.Errorf("%w: %q", core.ErrUnknownTxType, tx.Type))
	}
	if err := h.mempool.Add(&tx); err != nil {
		code := CodeFor(err)
		if code == CodeInternalError {
			code = CodeTxRejected
		}
		return errResponse(req.ID, code, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}
