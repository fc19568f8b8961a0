package escrow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/escrow"
	"github.com/tolelom/pazaak/internal/testutil"
	"github.com/tolelom/pazaak/vm/modules/token"
)

func setup(t *testing.T, mode core.EscrowMode) (core.State, escrow.Custodian, testutil.Player, testutil.Player) {
	t.Helper()
	state := testutil.NewStateDB()
	alice, bob := testutil.NewPlayer(t), testutil.NewPlayer(t)
	testutil.Seed(t, state, core.GameConfig{MinimalBid: 1, EscrowMode: mode}, map[string]uint64{
		alice.ID: 500,
		bob.ID:   500,
	})
	cfg, err := state.GetGameConfig()
	require.NoError(t, err)
	c, err := escrow.New(token.NewLedger(state), *cfg)
	require.NoError(t, err)
	return state, c, alice, bob
}

func acct(p testutil.Player) string {
	return core.TokenAccountAddress(p.ID, testutil.StakeMint)
}

func TestVaultAddressing(t *testing.T) {
	_, perRoom, _, _ := setup(t, core.EscrowPerRoom)
	v1, v2 := perRoom.Vault(1), perRoom.Vault(2)
	assert.NotEqual(t, v1.Address, v2.Address)
	assert.Equal(t, core.RoomVaultAddress(1), v1.Address)
	assert.Equal(t, core.RoomAddress(1), v1.Authority)

	_, shared, _, _ := setup(t, core.EscrowShared)
	assert.Equal(t, shared.Vault(1), shared.Vault(2))
	assert.Equal(t, core.ConfigAddress(), shared.Vault(1).Authority)
}

func TestDepositRelease(t *testing.T) {
	for _, mode := range []core.EscrowMode{core.EscrowPerRoom, core.EscrowShared} {
		t.Run(string(mode), func(t *testing.T) {
			state, c, alice, bob := setup(t, mode)
			v, err := c.Open(1)
			require.NoError(t, err)

			require.NoError(t, c.Deposit(v, acct(alice), alice.ID, 100))
			require.NoError(t, c.Deposit(v, acct(bob), bob.ID, 100))
			assert.Equal(t, uint64(200), testutil.TokenBalance(t, state, v.Address))

			require.NoError(t, c.Release(v, acct(bob), 200))
			assert.Equal(t, uint64(0), testutil.TokenBalance(t, state, v.Address))
			assert.Equal(t, uint64(600), testutil.TokenBalance(t, state, acct(bob)))
			assert.Equal(t, uint64(400), testutil.TokenBalance(t, state, acct(alice)))
		})
	}
}

func TestDepositFailures(t *testing.T) {
	state, c, alice, bob := setup(t, core.EscrowPerRoom)
	v, err := c.Open(1)
	require.NoError(t, err)

	tests := []struct {
		name      string
		from      string
		authority string
		amount    uint64
	}{
		{"insufficient balance", acct(alice), alice.ID, 501},
		{"wrong signer", acct(alice), bob.ID, 10},
		{"missing account", core.TokenAccountAddress(alice.ID, "other-mint"), alice.ID, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Deposit(v, tt.from, tt.authority, tt.amount)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrTransferFailed))
			assert.Equal(t, uint64(0), testutil.TokenBalance(t, state, v.Address))
			assert.Equal(t, uint64(500), testutil.TokenBalance(t, state, acct(alice)))
		})
	}
}

func TestDepositWrongMint(t *testing.T) {
	state, c, alice, _ := setup(t, core.EscrowPerRoom)
	v, err := c.Open(1)
	require.NoError(t, err)

	require.NoError(t, state.SetMint(&core.Mint{ID: "gold"}))
	gold := core.TokenAccountAddress(alice.ID, "gold")
	require.NoError(t, state.SetTokenAccount(&core.TokenAccount{Address: gold, Mint: "gold", Owner: alice.ID, Amount: 100}))

	err = c.Deposit(v, gold, alice.ID, 50)
	require.ErrorIs(t, err, core.ErrTransferFailed)
	require.ErrorIs(t, err, token.ErrMintMismatch)
	assert.Equal(t, uint64(100), testutil.TokenBalance(t, state, gold))
}

func TestSplitAtomic(t *testing.T) {
	state, c, alice, bob := setup(t, core.EscrowPerRoom)
	v, err := c.Open(1)
	require.NoError(t, err)
	require.NoError(t, c.Deposit(v, acct(alice), alice.ID, 100))
	require.NoError(t, c.Deposit(v, acct(bob), bob.ID, 100))

	// The second leg targets an account that does not exist: the first leg
	// must be rolled back with it.
	err = c.Split(v, []escrow.Leg{
		{To: acct(alice), Amount: 100},
		{To: "nowhere", Amount: 100},
	})
	require.ErrorIs(t, err, core.ErrTransferFailed)
	assert.Equal(t, uint64(200), testutil.TokenBalance(t, state, v.Address))
	assert.Equal(t, uint64(400), testutil.TokenBalance(t, state, acct(alice)))

	require.NoError(t, c.Split(v, []escrow.Leg{
		{To: acct(alice), Amount: 100},
		{To: acct(bob), Amount: 100},
	}))
	assert.Equal(t, uint64(0), testutil.TokenBalance(t, state, v.Address))
	assert.Equal(t, uint64(500), testutil.TokenBalance(t, state, acct(alice)))
	assert.Equal(t, uint64(500), testutil.TokenBalance(t, state, acct(bob)))
}

func TestSharedVaultNeedsConfigOwner(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, state.SetMint(&core.Mint{ID: testutil.StakeMint}))
	require.NoError(t, state.SetTokenAccount(&core.TokenAccount{Address: "stolen", Mint: testutil.StakeMint, Owner: "mallory"}))

	c := escrow.NewShared(token.NewLedger(state), "stolen", testutil.StakeMint)
	_, err := c.Open(1)
	require.ErrorIs(t, err, core.ErrTransferFailed)
	require.ErrorIs(t, err, token.ErrAccountConflict)
}
