// Package config loads node configuration from JSON or TOML.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	tml "github.com/BurntSushi/toml"

	"github.com/tolelom/pazaak/core"
)

// Duration is a time.Duration written as a string ("2s", "500ms") in both
// JSON and TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// StakeMintConfig creates the stake mint at genesis and funds players with it.
type StakeMintConfig struct {
	ID        string            `json:"id" toml:"id"`
	Authority string            `json:"authority" toml:"authority"` // pubkey hex
	Decimals  uint8             `json:"decimals" toml:"decimals"`
	Alloc     map[string]uint64 `json:"alloc" toml:"alloc"` // owner pubkey hex → amount
}

// PazaakConfig initializes the game config at genesis.
type PazaakConfig struct {
	Authority     string          `json:"authority" toml:"authority"`
	GameAuthority string          `json:"game_authority" toml:"game_authority"`
	MinimalBid    uint64          `json:"minimal_bid" toml:"minimal_bid"`
	EscrowMode    core.EscrowMode `json:"escrow_mode" toml:"escrow_mode"`
}

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID   string            `json:"chain_id" toml:"chain_id"`
	Alloc     map[string]uint64 `json:"alloc" toml:"alloc"` // pubkey hex → native balance
	StakeMint *StakeMintConfig  `json:"stake_mint,omitempty" toml:"stake_mint"`
	Pazaak    *PazaakConfig     `json:"pazaak,omitempty" toml:"pazaak"`
}

// Config holds all node configuration.
type Config struct {
	NodeID        string        `json:"node_id" toml:"node_id"`
	DataDir       string        `json:"data_dir" toml:"data_dir"`
	RPCPort       int           `json:"rpc_port" toml:"rpc_port"`
	RPCAuthToken  string        `json:"rpc_auth_token,omitempty" toml:"rpc_auth_token"`
	RPCRateLimit  float64       `json:"rpc_rate_limit" toml:"rpc_rate_limit"` // requests/s; 0 → unlimited
	RPCRateBurst  int           `json:"rpc_rate_burst" toml:"rpc_rate_burst"`
	BlockInterval Duration      `json:"block_interval" toml:"block_interval"`
	MaxBlockTxs   int           `json:"max_block_txs" toml:"max_block_txs"` // max transactions per block; 0 → 500
	Validators    []string      `json:"validators" toml:"validators"`       // authorised proposer pubkey hexes
	LogLevel      string        `json:"log_level" toml:"log_level"`
	LogFormat     string        `json:"log_format" toml:"log_format"` // text | json
	Genesis       GenesisConfig `json:"genesis" toml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:        "node0",
		DataDir:       "./data",
		RPCPort:       8545,
		RPCRateLimit:  200,
		RPCRateBurst:  400,
		BlockInterval: Duration(2 * time.Second),
		MaxBlockTxs:   500,
		LogLevel:      "info",
		LogFormat:     "text",
		Genesis: GenesisConfig{
			ChainID: "pazaak-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config file from path; files ending in .toml are parsed as
// TOML, anything else as JSON. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := tml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault behaves like Load but returns DefaultConfig when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save writes the config to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := tml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = json.MarshalIndent(cfg, "", "  "); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.Genesis.ChainID == "" {
		return errors.New("genesis.chain_id is required")
	}
	if c.BlockInterval <= 0 {
		return errors.New("block_interval must be positive")
	}
	if p := c.Genesis.Pazaak; p != nil {
		if c.Genesis.StakeMint == nil {
			return errors.New("genesis.pazaak requires genesis.stake_mint")
		}
		if p.MinimalBid == 0 {
			return core.ErrInvalidMinimalBid
		}
		if !p.EscrowMode.Valid() {
			return fmt.Errorf("genesis.pazaak.escrow_mode %q is not per_room or shared", p.EscrowMode)
		}
	}
	return nil
}
