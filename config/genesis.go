package config

import (
	"fmt"
	"sort"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/room"
	"github.com/tolelom/pazaak/vm/modules/token"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// DefaultStakeMintID names the genesis stake mint when the config leaves it blank.
const DefaultStakeMintID = "pazaak-stake"

// CreateGenesisBlock builds and signs block #0. It credits native balances,
// creates and funds the stake mint, initializes the game config, and
// commits the resulting state.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		if err := state.SetAccount(&core.Account{Address: pubkeyHex, Balance: balance}); err != nil {
			return nil, err
		}
	}
	if err := seedStake(cfg.Genesis, state); err != nil {
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// The genesis tx root commits to the chain id.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

func seedStake(g GenesisConfig, state core.State) error {
	sm := g.StakeMint
	if sm == nil {
		return nil
	}
	mintID := sm.ID
	if mintID == "" {
		mintID = DefaultStakeMintID
	}
	if err := state.SetMint(&core.Mint{ID: mintID, Authority: sm.Authority, Decimals: sm.Decimals}); err != nil {
		return err
	}

	// Sorted so genesis state is identical on every node.
	owners := make([]string, 0, len(sm.Alloc))
	for owner := range sm.Alloc {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	ledger := token.NewLedger(state)
	for _, owner := range owners {
		if _, err := ledger.MintTo(mintID, sm.Authority, owner, sm.Alloc[owner]); err != nil {
			return fmt.Errorf("genesis stake alloc for %s: %w", owner, err)
		}
	}

	if p := g.Pazaak; p != nil {
		_, err := room.InitConfig(state, ledger, p.Authority, core.InitGameConfigPayload{
			GameAuthority: p.GameAuthority,
			StakeMint:     mintID,
			MinimalBid:    p.MinimalBid,
			EscrowMode:    p.EscrowMode,
		})
		if err != nil {
			return fmt.Errorf("genesis game config: %w", err)
		}
	}
	return nil
}
