package testutil

import (
	"testing"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
)

// StakeMint is the mint ID used by Seed.
const StakeMint = "stake-mint"

// Player is a generated key pair used as a test identity.
type Player struct {
	Priv crypto.PrivateKey
	ID   string // pubkey hex
}

// NewPlayer generates a fresh identity.
func NewPlayer(t testing.TB) Player {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Player{Priv: priv, ID: pub.Hex()}
}

// Seed writes the stake mint, a funded token account per player, and a game
// config straight into state, bypassing transactions.
func Seed(t testing.TB, state core.State, cfg core.GameConfig, balances map[string]uint64) {
	t.Helper()
	var supply uint64
	for owner, amount := range balances {
		supply += amount
		must(t, state.SetTokenAccount(&core.TokenAccount{
			Address: core.TokenAccountAddress(owner, StakeMint),
			Mint:    StakeMint,
			Owner:   owner,
			Amount:  amount,
		}))
	}
	must(t, state.SetMint(&core.Mint{ID: StakeMint, Authority: cfg.Authority, Supply: supply}))

	if cfg.StakeMint == "" {
		cfg.StakeMint = StakeMint
	}
	if cfg.EscrowMode == "" {
		cfg.EscrowMode = core.EscrowPerRoom
	}
	if cfg.StakeTreasury == "" {
		cfg.StakeTreasury = core.SharedTreasuryAddress()
	}
	must(t, state.SetTokenAccount(&core.TokenAccount{
		Address: cfg.StakeTreasury,
		Mint:    cfg.StakeMint,
		Owner:   core.ConfigAddress(),
	}))
	must(t, state.SetGameConfig(&cfg))
}

// TokenBalance returns the amount held at a token account address, 0 if absent.
func TokenBalance(t testing.TB, state core.State, address string) uint64 {
	t.Helper()
	ta, err := state.GetTokenAccount(address)
	if err != nil {
		return 0
	}
	return ta.Amount
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
}
