package rpc

import (
	"errors"
	"fmt"

	"github.com/tolelom/pazaak/core"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeRateLimited    = -32001
	CodeTxRejected     = -32002
)

// Room and escrow failure kinds each get their own code so clients can tell
// them apart without parsing messages.
var kindCodes = map[string]int{
	"NotFound":                 -32004,
	"BidTooSmall":              -32010,
	"InvalidMinimalBid":        -32011,
	"TreasuryMintMismatch":     -32012,
	"SelfPlay":                 -32013,
	"Unauthorized":             -32014,
	"WrongState":               -32015,
	"DuplicateRoom":            -32016,
	"RoomNotFound":             -32017,
	"ConfigNotInitialized":     -32018,
	"ConfigAlreadyInitialized": -32019,
	"CommitmentMismatch":       -32020,
	"TransferFailed":           -32021,
	"UnknownTxType":            -32022,
}

var kindErrors = map[string]error{
	"NotFound":                 core.ErrNotFound,
	"BidTooSmall":              core.ErrBidTooSmall,
	"InvalidMinimalBid":        core.ErrInvalidMinimalBid,
	"TreasuryMintMismatch":     core.ErrTreasuryMintMismatch,
	"SelfPlay":                 core.ErrSelfPlay,
	"Unauthorized":             core.ErrUnauthorized,
	"WrongState":               core.ErrWrongState,
	"DuplicateRoom":            core.ErrDuplicateRoom,
	"RoomNotFound":             core.ErrRoomNotFound,
	"ConfigNotInitialized":     core.ErrConfigNotInitialized,
	"ConfigAlreadyInitialized": core.ErrConfigAlreadyInitialized,
	"CommitmentMismatch":       core.ErrCommitmentMismatch,
	"TransferFailed":           core.ErrTransferFailed,
	"UnknownTxType":            core.ErrUnknownTxType,
}

// Error represents a JSON-RPC error object. It unwraps to the matching core
// sentinel, so errors.Is works on the client side of a call.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Kind returns the failure kind the code stands for, or "".
func (e *Error) Kind() string {
	for kind, code := range kindCodes {
		if code == e.Code {
			return kind
		}
	}
	return ""
}

func (e *Error) Unwrap() error {
	return kindErrors[e.Kind()]
}

// CodeFor returns the JSON-RPC error code for err.
func CodeFor(err error) int {
	if code, ok := kindCodes[core.ErrorKind(err)]; ok {
		return code
	}
	switch {
	case errors.Is(err, core.ErrChainIDMismatch):
		return CodeInvalidParams
	case errors.Is(err, core.ErrTxKnown), errors.Is(err, core.ErrMempoolFull):
		return CodeTxRejected
	}
	return CodeInternalError
}

func failResponse(id any, err error) Response {
	return errResponse(id, CodeFor(err), err.Error())
}
