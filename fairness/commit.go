// Package fairness implements the commit-reveal protocol for room outcomes:
// player1 commits to a secret card ordering at create, unpredictable entropy
// is mixed in at join, and the reveal at finish is checked and replayed.
package fairness

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/tolelom/pazaak/core"
)

// Commit returns SHA-256(preimage).
func Commit(preimage []byte) core.Hash32 {
	return sha256.Sum256(preimage)
}

// Verify checks that preimage hashes to commitment.
func Verify(preimage []byte, commitment core.Hash32) error {
	got := Commit(preimage)
	if subtle.ConstantTimeCompare(got[:], commitment[:]) != 1 {
		return fmt.Errorf("%w: expected %s got %s", core.ErrCommitmentMismatch, commitment, got)
	}
	return nil
}

// SeedSource produces the fairness seed recorded when player2 joins a room.
// Implementations must not let either player choose the result alone.
type SeedSource interface {
	FairnessSeed(roomID uint64, contribution uint32) uint32
}

// CombineSeed mixes a player's contribution with external entropy.
func CombineSeed(contribution, entropy uint32) uint32 {
	return contribution ^ entropy
}

// BlockBeacon derives entropy from the chain position of the join: the hash
// of the previous block and the joining transaction's id. Neither is known to
// player1 when they commit, and player2 cannot change the previous block.
type BlockBeacon struct {
	PrevHash string
	TxID     string
}

// Beacon returns the first four bytes of
// SHA-256(prevHash || txID || le64(roomID)) as a big-endian uint32.
func (b BlockBeacon) Beacon(roomID uint64) uint32 {
	h := sha256.New()
	h.Write([]byte(b.PrevHash))
	h.Write([]byte(b.TxID))
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], roomID)
	h.Write(id[:])
	return binary.BigEndian.Uint32(h.Sum(nil)[:4])
}

func (b BlockBeacon) FairnessSeed(roomID uint64, contribution uint32) uint32 {
	return CombineSeed(contribution, b.Beacon(roomID))
}

// FixedSeed is a SeedSource with constant entropy, for tests and replays.
type FixedSeed uint32

func (f FixedSeed) FairnessSeed(_ uint64, contribution uint32) uint32 {
	return CombineSeed(contribution, uint32(f))
}
