package room

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/escrow"
)

// LoadConfig reads the game config, mapping a missing record to
// ErrConfigNotInitialized.
func LoadConfig(state core.State) (*core.GameConfig, error) {
	cfg, err := state.GetGameConfig()
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrConfigNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	return cfg, nil
}

// InitConfig creates the game config with authority as its administrator.
// With no treasury given, an empty one owned by the config is opened at
// SharedTreasuryAddress.
func InitConfig(state core.State, ledger escrow.Ledger, authority string, p core.InitGameConfigPayload) (*core.GameConfig, error) {
	if _, err := state.GetGameConfig(); err == nil {
		return nil, core.ErrConfigAlreadyInitialized
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	if p.MinimalBid == 0 {
		return nil, core.ErrInvalidMinimalBid
	}
	if p.GameAuthority == "" {
		return nil, errors.New("game authority required")
	}
	if !p.EscrowMode.Valid() {
		return nil, fmt.Errorf("unknown escrow mode %q", p.EscrowMode)
	}
	if _, err := state.GetMint(p.StakeMint); err != nil {
		return nil, fmt.Errorf("stake mint %q: %w", p.StakeMint, err)
	}

	treasury := p.StakeTreasury
	if treasury == "" {
		treasury = core.SharedTreasuryAddress()
		if err := ledger.EnsureAccount(treasury, core.ConfigAddress(), p.StakeMint); err != nil {
			return nil, fmt.Errorf("open treasury: %w", err)
		}
	} else if err := checkTreasury(state, treasury, p.StakeMint); err != nil {
		return nil, err
	}

	cfg := &core.GameConfig{
		Authority:     authority,
		GameAuthority: p.GameAuthority,
		StakeMint:     p.StakeMint,
		StakeTreasury: treasury,
		MinimalBid:    p.MinimalBid,
		EscrowMode:    p.EscrowMode,
	}
	if err := state.SetGameConfig(cfg); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"authority":   authority,
		"stake_mint":  cfg.StakeMint,
		"minimal_bid": cfg.MinimalBid,
		"escrow_mode": cfg.EscrowMode,
	}).Info("game config initialized")
	return cfg, nil
}

func checkTreasury(state core.State, address, mint string) error {
	ta, err := state.GetTokenAccount(address)
	if err != nil {
		return fmt.Errorf("stake treasury %q: %w", address, err)
	}
	if ta.Mint != mint {
		return fmt.Errorf("%w: treasury holds %s, stake mint is %s", core.ErrTreasuryMintMismatch, ta.Mint, mint)
	}
	if ta.Owner != core.ConfigAddress() {
		return fmt.Errorf("%w: treasury must be owned by the config address", core.ErrUnauthorized)
	}
	return nil
}

// ErrNoConfigChange rejects an update that leaves every setting as it is.
var ErrNoConfigChange = errors.New("config update changes nothing")

// UpdateConfig changes the game authority and minimal bid. Only the config
// authority may call it; zero values keep the current setting.
func UpdateConfig(state core.State, caller string, p core.UpdateGameConfigPayload) (*core.GameConfig, error) {
	cfg, err := LoadConfig(state)
	if err != nil {
		return nil, err
	}
	if caller != cfg.Authority {
		return nil, fmt.Errorf("%w: only the config authority may update it", core.ErrUnauthorized)
	}
	changed := false
	if p.GameAuthority != "" && p.GameAuthority != cfg.GameAuthority {
		cfg.GameAuthority = p.GameAuthority
		changed = true
	}
	if p.MinimalBid != 0 && p.MinimalBid != cfg.MinimalBid {
		cfg.MinimalBid = p.MinimalBid
		changed = true
	}
	if !changed {
		return nil, ErrNoConfigChange
	}
	if err := state.SetGameConfig(cfg); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"game_authority": cfg.GameAuthority,
		"minimal_bid":    cfg.MinimalBid,
	}).Info("game config updated")
	return cfg, nil
}
