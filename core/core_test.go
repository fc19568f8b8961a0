package core_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/internal/testutil"
)

func signedTx(t *testing.T, chainID string) *core.Transaction {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := core.NewTransaction(chainID, core.TxTransfer, pub.Hex(), 0, 0, core.TransferPayload{To: "aa", Amount: 1})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestTransactionSignVerify(t *testing.T) {
	tx := signedTx(t, "test-chain")
	require.NotEmpty(t, tx.ID)
	require.NoError(t, tx.Verify())

	tx.Fee = 999
	assert.Error(t, tx.Verify(), "tampered tx should fail verification")
}

func TestBlockIntegrity(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	kept, dropped := signedTx(t, "test-chain"), signedTx(t, "test-chain")
	block := core.NewBlock(0, "genesis", pub.Hex(), []*core.Transaction{kept, dropped})
	block.Retain([]*core.Transaction{kept})
	block.Sign(priv)
	require.NoError(t, block.Verify(pub))

	bc := core.NewBlockchain(testutil.NewBlockStore())
	require.NoError(t, bc.Init())

	// Re-adding a dropped tx after sealing is caught by the tx root.
	padded := *block
	padded.Transactions = []*core.Transaction{kept, dropped}
	assert.ErrorIs(t, padded.Verify(pub), core.ErrBlockTampered)
	assert.ErrorIs(t, bc.AddBlock(&padded), core.ErrBlockTampered)

	moved := *block
	moved.Header.Height = 5
	assert.ErrorIs(t, bc.AddBlock(&moved), core.ErrBlockTampered)
	assert.Nil(t, bc.Tip())

	require.NoError(t, bc.AddBlock(block))
	assert.Equal(t, block.Hash, bc.Tip().Hash)
}

func TestMempool(t *testing.T) {
	mp := core.NewMempool("test-chain")
	tx := signedTx(t, "test-chain")

	require.NoError(t, mp.Add(tx))
	assert.Equal(t, 1, mp.Size())
	assert.ErrorIs(t, mp.Add(tx), core.ErrTxKnown)
	assert.ErrorIs(t, mp.Add(signedTx(t, "other-chain")), core.ErrChainIDMismatch)

	assert.Len(t, mp.Pending(10), 1)
	mp.Remove([]string{tx.ID})
	assert.Zero(t, mp.Size())
	assert.Empty(t, mp.Pending(10))
}

func TestGameRoomJSONKeepsVariant(t *testing.T) {
	commit := core.Hash32{1, 2, 3}
	created := &core.CreatedRoom{Player1: "p1", TokenBid: 100, CommitmentHash: commit}
	busy := created.Join("p2", 42)
	finished := busy.Finish(7, core.WinnerPlayer2)

	for _, st := range []core.RoomState{created, busy, finished} {
		t.Run(string(st.Phase()), func(t *testing.T) {
			data, err := json.Marshal(core.GameRoom{ID: 9, State: st})
			require.NoError(t, err)

			var got core.GameRoom
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, uint64(9), got.ID)
			assert.Equal(t, st, got.State)
		})
	}

	assert.Equal(t, "p1", finished.Player1)
	assert.Equal(t, "p2", finished.Player2)
	assert.Equal(t, uint32(42), finished.FairnessSeed)
	assert.Equal(t, commit, finished.CommitmentHash)
}

func TestGameRoomJSONRejectsAmbiguousState(t *testing.T) {
	var r core.GameRoom
	err := json.Unmarshal([]byte(`{"id":1}`), &r)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"id":1,"created":{"player1":"a"},"busy":{"player1":"a"}}`), &r)
	assert.Error(t, err)
}

func TestWinnerSideText(t *testing.T) {
	data, err := json.Marshal(core.WinnerPlayer1)
	require.NoError(t, err)
	assert.JSONEq(t, `"player1"`, string(data))

	var w core.WinnerSide
	assert.Error(t, json.Unmarshal([]byte(`"player3"`), &w))
}

func TestErrorKind(t *testing.T) {
	wrapped := fmt.Errorf("room 4: %w", core.ErrCommitmentMismatch)
	assert.Equal(t, "CommitmentMismatch", core.ErrorKind(wrapped))

	custody := fmt.Errorf("%w: %w", core.ErrTransferFailed, core.ErrNotFound)
	assert.Equal(t, "TransferFailed", core.ErrorKind(custody))

	assert.Equal(t, "", core.ErrorKind(fmt.Errorf("plain")))
	assert.Equal(t, "", core.ErrorKind(nil))
}

func TestDerivedAddressesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range []string{
		core.RoomAddress(1), core.RoomAddress(2),
		core.RoomVaultAddress(1), core.RoomVaultAddress(2),
		core.ConfigAddress(), core.SharedTreasuryAddress(),
		core.TokenAccountAddress("p1", "mint"),
	} {
		assert.False(t, seen[a], "address %s derived twice", a)
		seen[a] = true
	}
}
