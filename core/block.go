package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/pazaak/crypto"
)

// BlockHeader contains the block metadata that is hashed and signed.
type BlockHeader struct {
	Height    int64  `json:"height"`
	PrevHash  string `json:"prev_hash"`
	StateRoot string `json:"state_root"` // hash of state after executing this block
	TxRoot    string `json:"tx_root"`    // hash of all transaction IDs
	Timestamp int64  `json:"timestamp"`
	Proposer  string `json:"proposer"` // proposer's pubkey hex
}

// Block is an ordered batch of transactions with a signed header. Block order
// is what linearizes competing room transitions.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Hash         string         `json:"hash"`
	Signature    string         `json:"signature"`
}

// ErrBlockTampered is returned when a block's contents no longer match its
// sealed header.
var ErrBlockTampered = errors.New("block contents do not match header")

// ComputeHash returns the SHA-256 hash of the serialised header.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(b.Header)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign sets Hash and signs the block with the proposer's private key.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Hash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
}

// Retain narrows the block to the transactions that executed and recomputes
// the tx root. Call it before Sign.
func (b *Block) Retain(applied []*Transaction) {
	b.Transactions = applied
	b.Header.TxRoot = ComputeTxRoot(applied)
}

// CheckIntegrity reports whether the hash covers the header and the tx root
// covers the transaction list.
func (b *Block) CheckIntegrity() error {
	if b.Hash != b.ComputeHash() {
		return fmt.Errorf("%w: hash", ErrBlockTampered)
	}
	if b.Header.TxRoot != ComputeTxRoot(b.Transactions) {
		return fmt.Errorf("%w: tx root", ErrBlockTampered)
	}
	return nil
}

// Verify checks the block's integrity and its signature against pub.
func (b *Block) Verify(pub crypto.PublicKey) error {
	if err := b.CheckIntegrity(); err != nil {
		return err
	}
	return crypto.Verify(pub, []byte(b.Hash), b.Signature)
}

// ComputeTxRoot builds a deterministic root hash from all transaction IDs.
func ComputeTxRoot(txs []*Transaction) string {
	if len(txs) == 0 {
		return crypto.Hash([]byte("empty"))
	}
	var ids []byte
	for _, tx := range txs {
		ids = append(ids, tx.ID...)
	}
	return crypto.Hash(ids)
}

// NewBlock creates an unsigned block with the given parameters.
func NewBlock(height int64, prevHash, proposer string, txs []*Transaction) *Block {
	return &Block{
		Header: BlockHeader{
			Height:    height,
			PrevHash:  prevHash,
			TxRoot:    ComputeTxRoot(txs),
			Timestamp: time.Now().UnixNano(),
			Proposer:  proposer,
		},
		Transactions: txs,
	}
}
