package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/pazaak/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer         TxType = "transfer"
	TxCreateMint       TxType = "create_mint"
	TxMintTo           TxType = "mint_to"
	TxTokenTransfer    TxType = "token_transfer"
	TxInitGameConfig   TxType = "pazaak_init_config"
	TxUpdateGameConfig TxType = "pazaak_update_config"
	TxCreateRoom       TxType = "pazaak_create_room"
	TxJoinRoom         TxType = "pazaak_join_room"
	TxFinishRoom       TxType = "pazaak_finish_room"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the signed fields.
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	data, err := json.Marshal(signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	})
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native fee tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// CreateMintPayload registers a new token type with the signer as mint authority.
type CreateMintPayload struct {
	Decimals uint8 `json:"decimals"`
}

// MintToPayload issues new tokens into Owner's canonical token account.
type MintToPayload struct {
	Mint   string `json:"mint"`
	Owner  string `json:"owner"` // recipient pubkey hex
	Amount uint64 `json:"amount"`
}

// TokenTransferPayload moves tokens from the signer's account to To's account.
type TokenTransferPayload struct {
	Mint   string `json:"mint"`
	To     string `json:"to"` // recipient pubkey hex
	Amount uint64 `json:"amount"`
}

// InitGameConfigPayload creates the game config; the signer becomes its authority.
// An empty StakeTreasury opens a treasury account at SharedTreasuryAddress.
type InitGameConfigPayload struct {
	GameAuthority string     `json:"game_authority"`
	StakeMint     string     `json:"stake_mint"`
	StakeTreasury string     `json:"stake_treasury,omitempty"`
	MinimalBid    uint64     `json:"minimal_bid"`
	EscrowMode    EscrowMode `json:"escrow_mode"`
}

// UpdateGameConfigPayload changes the mutable config fields. Zero values keep
// the current setting.
type UpdateGameConfigPayload struct {
	GameAuthority string `json:"game_authority,omitempty"`
	MinimalBid    uint64 `json:"minimal_bid,omitempty"`
}

// CreateRoomPayload opens a room and escrows the signer's bid.
type CreateRoomPayload struct {
	RoomID         uint64 `json:"room_id"`
	TokenBid       uint64 `json:"token_bid"`
	CommitmentHash Hash32 `json:"commitment_hash"`
}

// JoinRoomPayload joins a created room as player2 and escrows a matching bid.
type JoinRoomPayload struct {
	RoomID               uint64 `json:"room_id"`
	FairnessContribution uint32 `json:"fairness_contribution"`
}

// FinishRoomPayload reveals player1's committed preimage and the oracle seed.
type FinishRoomPayload struct {
	RoomID           uint64 `json:"room_id"`
	RevealedPreimage string `json:"revealed_preimage"` // hex
	RevealedSeed     uint32 `json:"revealed_seed"`
}
