package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/internal/testutil"
	"github.com/tolelom/pazaak/vm"
	"github.com/tolelom/pazaak/vm/modules/token"
	"github.com/tolelom/pazaak/wallet"
)

const chainID = "test-chain"

func newWallet(t *testing.T, state core.State, balance uint64) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate(chainID)
	require.NoError(t, err)
	require.NoError(t, state.SetAccount(&core.Account{Address: w.PubKey(), Balance: balance}))
	return w
}

func TestNativeTransfer(t *testing.T) {
	state := testutil.NewStateDB()
	exec := vm.NewExecutor(state, events.NewEmitter())
	sender := newWallet(t, state, 1000)
	receiver := newWallet(t, state, 0)

	tx, err := sender.Transfer(receiver.PubKey(), 300, 0, 1)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", sender.PubKey(), []*core.Transaction{tx})
	require.NoError(t, exec.ExecuteTx(block, tx))

	acc, _ := state.GetAccount(sender.PubKey())
	assert.Equal(t, uint64(699), acc.Balance)
	assert.Equal(t, uint64(1), acc.Nonce)
	acc, _ = state.GetAccount(receiver.PubKey())
	assert.Equal(t, uint64(300), acc.Balance)

	// Replaying the same nonce is rejected.
	require.Error(t, exec.ExecuteTx(block, tx))
}

func TestMintLifecycle(t *testing.T) {
	state := testutil.NewStateDB()
	emitter := events.NewEmitter()
	var minted []events.Event
	emitter.Subscribe(events.EventTokensMinted, func(e events.Event) { minted = append(minted, e) })
	exec := vm.NewExecutor(state, emitter)

	authority := newWallet(t, state, 100)
	alice := newWallet(t, state, 100)
	block := core.NewBlock(1, "0000", authority.PubKey(), nil)

	create, err := authority.CreateMint(2, 0, 0)
	require.NoError(t, err)
	require.NoError(t, exec.ExecuteTx(block, create))
	mintID := token.MintID(create.ID)

	mint, err := state.GetMint(mintID)
	require.NoError(t, err)
	assert.Equal(t, authority.PubKey(), mint.Authority)
	assert.Equal(t, uint8(2), mint.Decimals)

	tx, err := authority.MintTo(mintID, alice.PubKey(), 500, 1, 0)
	require.NoError(t, err)
	require.NoError(t, exec.ExecuteTx(block, tx))
	assert.Equal(t, uint64(500), testutil.TokenBalance(t, state, alice.TokenAccount(mintID)))
	assert.Empty(t, minted, "events wait for Publish")
	exec.Publish()
	require.Len(t, minted, 1)

	// Only the mint authority can issue.
	tx, err = alice.MintTo(mintID, alice.PubKey(), 500, 0, 0)
	require.NoError(t, err)
	err = exec.ExecuteTx(block, tx)
	require.ErrorIs(t, err, core.ErrUnauthorized)
	mint, _ = state.GetMint(mintID)
	assert.Equal(t, uint64(500), mint.Supply)
}

func TestTokenTransfer(t *testing.T) {
	state := testutil.NewStateDB()
	exec := vm.NewExecutor(state, events.NewEmitter())
	alice := newWallet(t, state, 10)
	bob := newWallet(t, state, 10)
	testutil.Seed(t, state, core.GameConfig{MinimalBid: 1}, map[string]uint64{alice.PubKey(): 100})
	block := core.NewBlock(1, "0000", alice.PubKey(), nil)

	tx, err := alice.TokenTransfer(testutil.StakeMint, bob.PubKey(), 40, 0, 0)
	require.NoError(t, err)
	require.NoError(t, exec.ExecuteTx(block, tx))
	assert.Equal(t, uint64(60), testutil.TokenBalance(t, state, alice.TokenAccount(testutil.StakeMint)))
	assert.Equal(t, uint64(40), testutil.TokenBalance(t, state, bob.TokenAccount(testutil.StakeMint)))

	// Overdraw fails atomically: fee and nonce are rolled back with it.
	tx, err = alice.TokenTransfer(testutil.StakeMint, bob.PubKey(), 61, 1, 5)
	require.NoError(t, err)
	require.ErrorIs(t, exec.ExecuteTx(block, tx), token.ErrInsufficientFunds)
	acc, _ := state.GetAccount(alice.PubKey())
	assert.Equal(t, uint64(10), acc.Balance)
	assert.Equal(t, uint64(1), acc.Nonce)
	assert.Equal(t, uint64(60), testutil.TokenBalance(t, state, alice.TokenAccount(testutil.StakeMint)))
}

func TestLedgerTransferChecks(t *testing.T) {
	state := testutil.NewStateDB()
	alice, bob := testutil.NewPlayer(t), testutil.NewPlayer(t)
	testutil.Seed(t, state, core.GameConfig{MinimalBid: 1}, map[string]uint64{alice.ID: 100, bob.ID: 0})
	l := token.NewLedger(state)
	from := core.TokenAccountAddress(alice.ID, testutil.StakeMint)
	to := core.TokenAccountAddress(bob.ID, testutil.StakeMint)

	require.ErrorIs(t, l.Transfer(from, to, bob.ID, 1), token.ErrOwnerMismatch)
	require.ErrorIs(t, l.Transfer("missing", to, alice.ID, 1), token.ErrAccountNotFound)
	require.ErrorIs(t, l.Transfer(from, to, alice.ID, 101), token.ErrInsufficientFunds)
	require.NoError(t, l.Transfer(from, to, alice.ID, 100))

	bal, err := l.Balance(to)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	require.NoError(t, l.EnsureAccount(to, bob.ID, testutil.StakeMint))
	require.ErrorIs(t, l.EnsureAccount(to, alice.ID, testutil.StakeMint), token.ErrAccountConflict)
	require.ErrorIs(t, l.EnsureAccount("new", alice.ID, "nope"), token.ErrMintNotFound)
}
