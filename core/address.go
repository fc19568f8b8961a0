package core

import (
	"encoding/binary"

	"github.com/tolelom/pazaak/crypto"
)

// Namespace tags for derived addresses.
const (
	RoomSeed         = "pazaak-room"
	RoomTreasurySeed = "pazaak-room-treasury"
	ConfigSeed       = "pazaak-config"
	TreasurySeed     = "pazaak-treasury"
	TokenAccountSeed = "token-account"
)

func roomIDBytes(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

// RoomAddress is the identity of a room; it owns the room's vault.
func RoomAddress(id uint64) string {
	return crypto.DeriveAddress(RoomSeed, roomIDBytes(id))
}

// RoomVaultAddress is the token account holding a room's stakes in per-room mode.
func RoomVaultAddress(id uint64) string {
	return crypto.DeriveAddress(RoomTreasurySeed, roomIDBytes(id))
}

// ConfigAddress is the identity of the game config; it owns the shared treasury.
func ConfigAddress() string {
	return crypto.DeriveAddress(ConfigSeed)
}

// SharedTreasuryAddress is the default shared treasury token account.
func SharedTreasuryAddress() string {
	return crypto.DeriveAddress(TreasurySeed)
}

// TokenAccountAddress is owner's canonical token account for mint.
func TokenAccountAddress(owner, mint string) string {
	return crypto.DeriveAddress(TokenAccountSeed, []byte(owner), []byte(mint))
}
