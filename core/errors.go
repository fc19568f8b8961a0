package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Room and escrow failure kinds. Every rejected operation wraps exactly one
// of these so callers can tell them apart with errors.Is.
var (
	// Validation errors: nothing was written.
	ErrBidTooSmall          = errors.New("bid is smaller than minimal required bid")
	ErrInvalidMinimalBid    = errors.New("minimal bid must be greater than zero")
	ErrTreasuryMintMismatch = errors.New("token treasury mint mismatch")
	ErrSelfPlay             = errors.New("player cannot join their own room")
	ErrUnauthorized         = errors.New("signer is not authorized for this operation")

	// State errors: the room or config is not in a phase that allows the call.
	ErrWrongState               = errors.New("room is in the wrong state for this operation")
	ErrDuplicateRoom            = errors.New("room already exists")
	ErrRoomNotFound             = errors.New("room not found")
	ErrConfigNotInitialized     = errors.New("game config not initialized")
	ErrConfigAlreadyInitialized = errors.New("game config already initialized")

	// Fairness errors: the reveal did not match the commitment.
	ErrCommitmentMismatch = errors.New("revealed preimage does not match commitment")

	// Custody errors: the token ledger refused a movement.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrUnknownTxType means no module handles the transaction's type.
	ErrUnknownTxType = errors.New("unknown transaction type")
)

var errorKinds = []struct {
	err  error
	name string
}{
	{ErrBidTooSmall, "BidTooSmall"},
	{ErrInvalidMinimalBid, "InvalidMinimalBid"},
	{ErrTreasuryMintMismatch, "TreasuryMintMismatch"},
	{ErrSelfPlay, "SelfPlay"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrWrongState, "WrongState"},
	{ErrDuplicateRoom, "DuplicateRoom"},
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrConfigNotInitialized, "ConfigNotInitialized"},
	{ErrConfigAlreadyInitialized, "ConfigAlreadyInitialized"},
	{ErrCommitmentMismatch, "CommitmentMismatch"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrUnknownTxType, "UnknownTxType"},
	{ErrNotFound, "NotFound"},
}

// ErrorKind returns the name of the first known failure kind wrapped by err,
// or "" if err carries none.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
