// Package wallet holds a player's key and builds signed pazaak transactions.
package wallet

import (
	"encoding/hex"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/fairness"
)

// Wallet signs transactions for one chain with one key pair.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	chainID string
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public(), chainID: chainID}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate(chainID string) (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv, chainID), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key; this is the player id.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// ChainID returns the chain this wallet signs for.
func (w *Wallet) ChainID() string {
	return w.chainID
}

// TokenAccount returns the wallet's canonical token account for mint.
func (w *Wallet) TokenAccount(mint string) string {
	return core.TokenAccountAddress(w.PubKey(), mint)
}

// NewTx creates a signed transaction. nonce should match the account's
// current nonce.
func (w *Wallet) NewTx(typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer sends native fee currency.
func (w *Wallet) Transfer(to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxTransfer, nonce, fee, core.TransferPayload{To: to, Amount: amount})
}

// CreateMint registers a new mint with the wallet as authority.
func (w *Wallet) CreateMint(decimals uint8, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxCreateMint, nonce, fee, core.CreateMintPayload{Decimals: decimals})
}

// MintTo issues tokens of mint to owner.
func (w *Wallet) MintTo(mint, owner string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxMintTo, nonce, fee, core.MintToPayload{Mint: mint, Owner: owner, Amount: amount})
}

// TokenTransfer moves tokens of mint to another player.
func (w *Wallet) TokenTransfer(mint, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxTokenTransfer, nonce, fee, core.TokenTransferPayload{Mint: mint, To: to, Amount: amount})
}

// InitConfig creates the game config with the wallet as its authority.
func (w *Wallet) InitConfig(p core.InitGameConfigPayload, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxInitGameConfig, nonce, fee, p)
}

// UpdateConfig changes the game authority or minimal bid.
func (w *Wallet) UpdateConfig(p core.UpdateGameConfigPayload, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxUpdateGameConfig, nonce, fee, p)
}

// CreateRoom opens room roomID, committing to preimage without revealing it.
func (w *Wallet) CreateRoom(roomID, bid uint64, preimage []byte, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxCreateRoom, nonce, fee, core.CreateRoomPayload{
		RoomID:         roomID,
		TokenBid:       bid,
		CommitmentHash: fairness.Commit(preimage),
	})
}

// JoinRoom joins roomID as player2.
func (w *Wallet) JoinRoom(roomID uint64, contribution uint32, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxJoinRoom, nonce, fee, core.JoinRoomPayload{
		RoomID:               roomID,
		FairnessContribution: contribution,
	})
}

// FinishRoom reveals preimage and the oracle seed for roomID. Only the game
// authority's wallet can get this accepted.
func (w *Wallet) FinishRoom(roomID uint64, preimage []byte, seed uint32, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxFinishRoom, nonce, fee, core.FinishRoomPayload{
		RoomID:           roomID,
		RevealedPreimage: hex.EncodeToString(preimage),
		RevealedSeed:     seed,
	})
}
