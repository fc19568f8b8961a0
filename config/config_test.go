package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/pazaak/config"
	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/internal/testutil"
	"github.com/tolelom/pazaak/room"
)

const tomlConfig = `
node_id = "node7"
rpc_port = 9000
block_interval = "500ms"
validators = ["aa"]
log_format = "json"

[genesis]
chain_id = "pazaak-test"

[genesis.alloc]
aa = 10

[genesis.stake_mint]
authority = "aa"
decimals = 2

[genesis.stake_mint.alloc]
bb = 300

[genesis.pazaak]
authority = "aa"
game_authority = "cc"
minimal_bid = 25
escrow_mode = "shared"
`

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlConfig), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node7", cfg.NodeID)
	assert.Equal(t, 9000, cfg.RPCPort)
	assert.Equal(t, config.Duration(500*time.Millisecond), cfg.BlockInterval)
	assert.Equal(t, "json", cfg.LogFormat)
	// Unset fields keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500, cfg.MaxBlockTxs)

	require.NotNil(t, cfg.Genesis.StakeMint)
	assert.Equal(t, uint64(300), cfg.Genesis.StakeMint.Alloc["bb"])
	require.NotNil(t, cfg.Genesis.Pazaak)
	assert.Equal(t, core.EscrowShared, cfg.Genesis.Pazaak.EscrowMode)
	assert.Equal(t, uint64(25), cfg.Genesis.Pazaak.MinimalBid)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"node.json", "node.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.RPCAuthToken = "secret"
			cfg.BlockInterval = config.Duration(3 * time.Second)
			cfg.Genesis.Alloc["aa"] = 5

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, config.Save(cfg, path))
			loaded, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = config.LoadOrDefault(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"no chain id", func(c *config.Config) { c.Genesis.ChainID = "" }, false},
		{"zero interval", func(c *config.Config) { c.BlockInterval = 0 }, false},
		{"pazaak without mint", func(c *config.Config) {
			c.Genesis.Pazaak = &config.PazaakConfig{MinimalBid: 1, EscrowMode: core.EscrowPerRoom}
		}, false},
		{"zero minimal bid", func(c *config.Config) {
			c.Genesis.StakeMint = &config.StakeMintConfig{}
			c.Genesis.Pazaak = &config.PazaakConfig{EscrowMode: core.EscrowPerRoom}
		}, false},
		{"bad mode", func(c *config.Config) {
			c.Genesis.StakeMint = &config.StakeMintConfig{}
			c.Genesis.Pazaak = &config.PazaakConfig{MinimalBid: 1, EscrowMode: "vault"}
		}, false},
		{"full genesis", func(c *config.Config) {
			c.Genesis.StakeMint = &config.StakeMintConfig{}
			c.Genesis.Pazaak = &config.PazaakConfig{MinimalBid: 1, EscrowMode: core.EscrowShared}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateGenesisBlock(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	player := testutil.NewPlayer(t)
	oracle := testutil.NewPlayer(t)

	cfg := config.DefaultConfig()
	cfg.Genesis.Alloc[player.ID] = 42
	cfg.Genesis.StakeMint = &config.StakeMintConfig{
		Authority: pub.Hex(),
		Alloc:     map[string]uint64{player.ID: 700},
	}
	cfg.Genesis.Pazaak = &config.PazaakConfig{
		Authority:     pub.Hex(),
		GameAuthority: oracle.ID,
		MinimalBid:    10,
		EscrowMode:    core.EscrowShared,
	}

	state := testutil.NewStateDB()
	block, err := config.CreateGenesisBlock(cfg, state, priv)
	require.NoError(t, err)
	assert.Equal(t, int64(0), block.Header.Height)
	assert.Equal(t, config.GenesisHash, block.Header.PrevHash)
	require.NoError(t, block.Verify(pub))

	acc, err := state.GetAccount(player.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), acc.Balance)

	mint, err := state.GetMint(config.DefaultStakeMintID)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), mint.Supply)
	assert.Equal(t, uint64(700), testutil.TokenBalance(t, state, core.TokenAccountAddress(player.ID, config.DefaultStakeMintID)))

	gc, err := room.LoadConfig(state)
	require.NoError(t, err)
	assert.Equal(t, oracle.ID, gc.GameAuthority)
	assert.Equal(t, config.DefaultStakeMintID, gc.StakeMint)
	assert.Equal(t, core.SharedTreasuryAddress(), gc.StakeTreasury)

	// Genesis is deterministic for the same config.
	again, err := config.CreateGenesisBlock(cfg, testutil.NewStateDB(), priv)
	require.NoError(t, err)
	assert.Equal(t, block.Header.StateRoot, again.Header.StateRoot)
}
