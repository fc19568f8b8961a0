package wallet_test

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/fairness"
	"github.com/tolelom/pazaak/wallet"
)

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := wallet.Generate("chain")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "player.key")
	require.NoError(t, wallet.SaveKey(path, "hunter2", w.PrivKey()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	priv, err := wallet.LoadKey(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, w.PubKey(), priv.Public().Hex())

	_, err = wallet.LoadKey(path, "wrong")
	assert.ErrorIs(t, err, wallet.ErrWrongPassword)
}

func TestKeystoreRejectsSwappedPubKey(t *testing.T) {
	w, err := wallet.Generate("chain")
	require.NoError(t, err)
	other, err := wallet.Generate("chain")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "player.key")
	require.NoError(t, wallet.SaveKey(path, "pw", w.PrivKey()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ks map[string]any
	require.NoError(t, json.Unmarshal(data, &ks))
	ks["pub_key"] = other.PubKey()
	data, err = json.Marshal(ks)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = wallet.LoadKey(path, "pw")
	assert.ErrorIs(t, err, wallet.ErrWrongPassword)
}

func TestRoomTransactions(t *testing.T) {
	w, err := wallet.Generate("chain")
	require.NoError(t, err)
	preimage := []byte("perm-A")

	create, err := w.CreateRoom(7, 100, preimage, 3, 1)
	require.NoError(t, err)
	require.NoError(t, create.Verify())
	assert.Equal(t, core.TxCreateRoom, create.Type)
	assert.Equal(t, w.PubKey(), create.From)
	assert.Equal(t, "chain", create.ChainID)
	assert.Equal(t, uint64(3), create.Nonce)
	var cp core.CreateRoomPayload
	require.NoError(t, json.Unmarshal(create.Payload, &cp))
	assert.Equal(t, uint64(7), cp.RoomID)
	assert.Equal(t, uint64(100), cp.TokenBid)
	// Only the commitment goes on chain.
	assert.Equal(t, fairness.Commit(preimage), cp.CommitmentHash)
	assert.NotContains(t, string(create.Payload), hex.EncodeToString(preimage))

	finish, err := w.FinishRoom(7, preimage, 9, 4, 1)
	require.NoError(t, err)
	var fp core.FinishRoomPayload
	require.NoError(t, json.Unmarshal(finish.Payload, &fp))
	assert.Equal(t, hex.EncodeToString(preimage), fp.RevealedPreimage)
	assert.Equal(t, uint32(9), fp.RevealedSeed)

	// Tampering breaks the signature.
	finish.Nonce++
	assert.Error(t, finish.Verify())
}
