package rpc_test

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/indexer"
	"github.com/tolelom/pazaak/internal/testutil"
	"github.com/tolelom/pazaak/rpc"
	"github.com/tolelom/pazaak/storage"
	"github.com/tolelom/pazaak/vm"
	"github.com/tolelom/pazaak/wallet"

	_ "github.com/tolelom/pazaak/vm/modules/pazaak"
	_ "github.com/tolelom/pazaak/vm/modules/token"
)

const chainID = "rpc-test"

type fixture struct {
	state   *storage.StateDB
	emitter *events.Emitter
	exec    *vm.Executor
	mempool *core.Mempool
	idx     *indexer.Indexer
	handler *rpc.Handler
	block   *core.Block

	oracle, p1, p2 *wallet.Wallet
	nonces         map[string]uint64
}

func newFixture(t *testing.T, mode core.EscrowMode) *fixture {
	t.Helper()
	db := testutil.NewMemDB()
	f := &fixture{
		state:   storage.NewStateDB(db),
		emitter: events.NewEmitter(),
		mempool: core.NewMempool(chainID),
		block:   core.NewBlock(1, "prev-block-hash", "validator", nil),
		nonces:  map[string]uint64{},
	}
	f.idx = indexer.New(db, f.emitter)
	f.exec = vm.NewExecutor(f.state, f.emitter)
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	require.NoError(t, bc.Init())
	f.handler = rpc.NewHandler(bc, f.mempool, f.state.Committed(), f.idx)

	for _, w := range []**wallet.Wallet{&f.oracle, &f.p1, &f.p2} {
		var err error
		*w, err = wallet.Generate(chainID)
		require.NoError(t, err)
	}
	admin := testutil.NewPlayer(t)
	testutil.Seed(t, f.state, core.GameConfig{
		Authority:     admin.ID,
		GameAuthority: f.oracle.PubKey(),
		MinimalBid:    50,
		EscrowMode:    mode,
	}, map[string]uint64{f.p1.PubKey(): 1000, f.p2.PubKey(): 1000})
	require.NoError(t, f.state.Commit())
	return f
}

func (f *fixture) nonce(w *wallet.Wallet) uint64 {
	n := f.nonces[w.PubKey()]
	f.nonces[w.PubKey()] = n + 1
	return n
}

// apply executes tx as a one-transaction block: the state is committed and
// only then are the events published.
func (f *fixture) apply(tx *core.Transaction, err error) error {
	if err != nil {
		return err
	}
	execErr := f.exec.ExecuteTx(f.block, tx)
	if err := f.state.Commit(); err != nil {
		return err
	}
	f.exec.Publish()
	return execErr
}

// playRoom runs a room through create, join and finish.
func (f *fixture) playRoom(t *testing.T, roomID uint64, preimage []byte) {
	t.Helper()
	require.NoError(t, f.apply(f.p1.CreateRoom(roomID, 100, preimage, f.nonce(f.p1), 0)))
	require.NoError(t, f.apply(f.p2.JoinRoom(roomID, 42, f.nonce(f.p2), 0)))
	require.NoError(t, f.apply(f.oracle.FinishRoom(roomID, preimage, 7, f.nonce(f.oracle), 0)))
}

func call(t *testing.T, h *rpc.Handler, method string, params any) rpc.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

// decodeResult round-trips a result through JSON the way a client sees it.
func decodeResult(t *testing.T, resp rpc.Response, out any) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestDispatchErrors(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)

	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{"unknown method", "noSuchMethod", nil, rpc.CodeMethodNotFound},
		{"missing room id", "getRoom", map[string]any{}, rpc.CodeInvalidParams},
		{"bad params", "getRoom", map[string]any{"room_id": "x"}, rpc.CodeInvalidParams},
		{"room not found", "getRoom", map[string]any{"room_id": 99}, -32017},
		{"missing owner", "getTokenBalance", map[string]any{}, rpc.CodeInvalidParams},
		{"unknown tx", "getTxResult", map[string]any{"tx_id": "nope"}, -32004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, f.handler, tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestGetConfigNotInitialized(t *testing.T) {
	db := testutil.NewMemDB()
	emitter := events.NewEmitter()
	h := rpc.NewHandler(
		core.NewBlockchain(storage.NewBlockStore(db)),
		core.NewMempool(chainID),
		storage.NewStateDB(db).Committed(),
		indexer.New(db, emitter),
	)
	resp := call(t, h, "getConfig", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeFor(core.ErrConfigNotInitialized), resp.Error.Code)
	assert.True(t, errors.Is(resp.Error, core.ErrConfigNotInitialized))
}

func TestCodeForDistinguishesKinds(t *testing.T) {
	kinds := []error{
		core.ErrBidTooSmall, core.ErrInvalidMinimalBid, core.ErrTreasuryMintMismatch,
		core.ErrSelfPlay, core.ErrUnauthorized, core.ErrWrongState, core.ErrDuplicateRoom,
		core.ErrRoomNotFound, core.ErrConfigNotInitialized, core.ErrConfigAlreadyInitialized,
		core.ErrCommitmentMismatch, core.ErrTransferFailed, core.ErrUnknownTxType,
	}
	seen := map[int]error{}
	for _, kind := range kinds {
		code := rpc.CodeFor(fmt.Errorf("room 3: %w", kind))
		require.NotEqual(t, rpc.CodeInternalError, code, kind)
		if prev, ok := seen[code]; ok {
			t.Fatalf("%v and %v share code %d", prev, kind, code)
		}
		seen[code] = kind

		rpcErr := &rpc.Error{Code: code, Message: kind.Error()}
		assert.ErrorIs(t, rpcErr, kind)
	}
	assert.Equal(t, rpc.CodeInternalError, rpc.CodeFor(errors.New("disk on fire")))
}

func TestRoomViews(t *testing.T) {
	for _, mode := range []core.EscrowMode{core.EscrowPerRoom, core.EscrowShared} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, mode)
			preimage := []byte("perm-A")

			require.NoError(t, f.apply(f.p1.CreateRoom(1, 100, preimage, f.nonce(f.p1), 0)))

			var view rpc.RoomView
			decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
			assert.Equal(t, rpc.StatusPending, view.Status)
			created, ok := view.Room.State.(*core.CreatedRoom)
			require.True(t, ok)
			assert.Equal(t, f.p1.PubKey(), created.Player1)

			var vault rpc.VaultView
			decodeResult(t, call(t, f.handler, "getRoomVault", map[string]any{"room_id": 1}), &vault)
			assert.Equal(t, mode, vault.Mode)
			assert.Equal(t, uint64(100), vault.Balance)
			assert.Equal(t, uint64(100), vault.Owed)
			if mode == core.EscrowPerRoom {
				assert.Equal(t, core.RoomVaultAddress(1), vault.Vault.Address)
			} else {
				assert.Equal(t, core.SharedTreasuryAddress(), vault.Vault.Address)
			}

			require.NoError(t, f.apply(f.p2.JoinRoom(1, 42, f.nonce(f.p2), 0)))
			decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
			assert.Equal(t, rpc.StatusInProgress, view.Status)
			decodeResult(t, call(t, f.handler, "getRoomVault", map[string]any{"room_id": 1}), &vault)
			assert.Equal(t, uint64(200), vault.Owed)

			require.NoError(t, f.apply(f.oracle.FinishRoom(1, preimage, 7, f.nonce(f.oracle), 0)))
			decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
			assert.Contains(t, []string{rpc.StatusPlayer1Won, rpc.StatusPlayer2Won, rpc.StatusDraw}, view.Status)
			decodeResult(t, call(t, f.handler, "getRoomVault", map[string]any{"room_id": 1}), &vault)
			assert.Zero(t, vault.Owed)
			assert.Zero(t, vault.Balance)

			var ids []uint64
			decodeResult(t, call(t, f.handler, "getRoomsByPlayer", map[string]any{"player": f.p2.PubKey()}), &ids)
			assert.Equal(t, []uint64{1}, ids)
		})
	}
}

func TestReadsSkipUncommittedBlock(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)
	preimage := []byte("perm-A")
	require.NoError(t, f.apply(f.p1.CreateRoom(1, 100, preimage, f.nonce(f.p1), 0)))
	require.NoError(t, f.apply(f.p2.JoinRoom(1, 42, f.nonce(f.p2), 0)))

	// A block is executing the finish but has not been stored yet.
	snap, err := f.state.Snapshot()
	require.NoError(t, err)
	finish, err := f.oracle.FinishRoom(1, preimage, 7, 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.exec.ExecuteTx(f.block, finish))

	var view rpc.RoomView
	decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
	assert.Equal(t, rpc.StatusInProgress, view.Status)
	var vault rpc.VaultView
	decodeResult(t, call(t, f.handler, "getRoomVault", map[string]any{"room_id": 1}), &vault)
	assert.Equal(t, uint64(200), vault.Balance)
	var bal rpc.TokenBalanceView
	decodeResult(t, call(t, f.handler, "getTokenBalance", map[string]any{"owner": f.p1.PubKey()}), &bal)
	assert.Equal(t, uint64(900), bal.Amount)

	// The block fails to store and is rolled back.
	require.NoError(t, f.state.RevertToSnapshot(snap))
	f.exec.Discard()
	decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
	assert.Equal(t, rpc.StatusInProgress, view.Status)
	resp := call(t, f.handler, "getTxResult", map[string]any{"tx_id": finish.ID})
	require.NotNil(t, resp.Error, "no result is recorded for a dropped block")

	require.NoError(t, f.apply(finish, nil))
	decodeResult(t, call(t, f.handler, "getRoom", map[string]any{"room_id": 1}), &view)
	assert.Contains(t, []string{rpc.StatusPlayer1Won, rpc.StatusPlayer2Won, rpc.StatusDraw}, view.Status)
	var res indexer.TxResult
	decodeResult(t, call(t, f.handler, "getTxResult", map[string]any{"tx_id": finish.ID}), &res)
	assert.True(t, res.OK)
}

func TestReplayRoom(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)
	preimage := []byte("perm-A")
	f.playRoom(t, 1, preimage)

	// Defaults to the preimage revealed on chain.
	var replay rpc.ReplayView
	decodeResult(t, call(t, f.handler, "replayRoom", map[string]any{"room_id": 1}), &replay)
	assert.True(t, replay.Consistent)
	assert.Equal(t, replay.RecordedWinner, replay.Match.Winner)

	decodeResult(t, call(t, f.handler, "replayRoom", map[string]any{
		"room_id":  1,
		"preimage": hex.EncodeToString(preimage),
	}), &replay)
	assert.True(t, replay.Consistent)

	resp := call(t, f.handler, "replayRoom", map[string]any{
		"room_id":  1,
		"preimage": hex.EncodeToString([]byte("perm-B")),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeFor(core.ErrCommitmentMismatch), resp.Error.Code)

	require.NoError(t, f.apply(f.p1.CreateRoom(2, 100, preimage, f.nonce(f.p1), 0)))
	resp = call(t, f.handler, "replayRoom", map[string]any{"room_id": 2})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeFor(core.ErrWrongState), resp.Error.Code)
}

func TestTokenBalanceDefaultsToStakeMint(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)

	var bal rpc.TokenBalanceView
	decodeResult(t, call(t, f.handler, "getTokenBalance", map[string]any{"owner": f.p1.PubKey()}), &bal)
	assert.Equal(t, testutil.StakeMint, bal.Mint)
	assert.Equal(t, uint64(1000), bal.Amount)

	stranger := testutil.NewPlayer(t)
	decodeResult(t, call(t, f.handler, "getTokenBalance", map[string]any{"owner": stranger.ID}), &bal)
	assert.Zero(t, bal.Amount)
}

func TestTxResultRecordsRejectionKind(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)
	tx, err := f.p1.CreateRoom(1, 10, []byte("perm-A"), f.nonce(f.p1), 0)
	require.NoError(t, err)
	require.ErrorIs(t, f.apply(tx, nil), core.ErrBidTooSmall)

	var res indexer.TxResult
	decodeResult(t, call(t, f.handler, "getTxResult", map[string]any{"tx_id": tx.ID}), &res)
	assert.False(t, res.OK)
	assert.Equal(t, "BidTooSmall", res.Kind)
	assert.Equal(t, string(core.TxCreateRoom), res.Type)
}

func TestSendTx(t *testing.T) {
	f := newFixture(t, core.EscrowPerRoom)
	tx, err := f.p1.CreateRoom(1, 100, []byte("perm-A"), 0, 0)
	require.NoError(t, err)

	var out map[string]string
	decodeResult(t, call(t, f.handler, "sendTx", tx), &out)
	assert.Equal(t, tx.ID, out["tx_id"])
	assert.Equal(t, 1, f.mempool.Size())

	resp := call(t, f.handler, "sendTx", tx)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeTxRejected, resp.Error.Code)

	other, err := wallet.New(f.p2.PrivKey(), "another-chain").JoinRoom(1, 1, 0, 0)
	require.NoError(t, err)
	resp = call(t, f.handler, "sendTx", other)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	bogus, err := f.p2.NewTx("pazaak_forfeit", 0, 0, map[string]any{"room_id": 1})
	require.NoError(t, err)
	resp = call(t, f.handler, "sendTx", bogus)
	require.NotNil(t, resp.Error)
	assert.ErrorIs(t, resp.Error, core.ErrUnknownTxType)
	assert.Equal(t, 1, f.mempool.Size())
}
