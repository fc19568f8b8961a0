package core

// Account holds a participant's native fee balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Mint describes a fungible token type. Stakes are denominated in one mint
// chosen by the game config.
type Mint struct {
	ID        string `json:"id"`
	Authority string `json:"authority"` // pubkey hex allowed to mint
	Decimals  uint8  `json:"decimals"`
	Supply    uint64 `json:"supply"`
}

// TokenAccount holds a balance of a single mint. Only Owner may authorize
// transfers out of it; for vaults the owner is a derived program address.
type TokenAccount struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

// EscrowMode selects where room stakes are custodied.
type EscrowMode string

const (
	// EscrowPerRoom gives every room its own derived vault.
	EscrowPerRoom EscrowMode = "per_room"
	// EscrowShared pools every room's stake in the config treasury.
	EscrowShared EscrowMode = "shared"
)

// Valid reports whether m is a known escrow mode.
func (m EscrowMode) Valid() bool {
	return m == EscrowPerRoom || m == EscrowShared
}

// GameConfig is the singleton configuration record read by every room
// transition. It is only written by the config handlers.
type GameConfig struct {
	Authority     string     `json:"authority"`      // may update the config
	GameAuthority string     `json:"game_authority"` // relays reveals and finishes rooms
	StakeMint     string     `json:"stake_mint"`
	StakeTreasury string     `json:"stake_treasury"` // token account used in shared mode
	MinimalBid    uint64     `json:"minimal_bid"`
	EscrowMode    EscrowMode `json:"escrow_mode"`
}

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Tokens
	GetMint(id string) (*Mint, error)
	SetMint(m *Mint) error
	GetTokenAccount(address string) (*TokenAccount, error)
	SetTokenAccount(ta *TokenAccount) error

	// Pazaak
	GetGameConfig() (*GameConfig, error)
	SetGameConfig(cfg *GameConfig) error
	GetRoom(id uint64) (*GameRoom, error)
	SetRoom(room *GameRoom) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
