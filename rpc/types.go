// Package rpc exposes pazaak chain state via a JSON-RPC 2.0 HTTP endpoint
// and streams room events over a websocket.
package rpc

import (
	"encoding/json"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/escrow"
	"github.com/tolelom/pazaak/fairness"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// Room result vocabulary shared with game servers.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusPlayer1Won = "player1_won"
	StatusPlayer2Won = "player2_won"
	StatusDraw       = "draw"
)

// RoomStatus maps a room's state onto the result vocabulary.
func RoomStatus(r *core.GameRoom) string {
	switch s := r.State.(type) {
	case *core.CreatedRoom:
		return StatusPending
	case *core.BusyRoom:
		return StatusInProgress
	case *core.FinishedRoom:
		switch s.Winner {
		case core.WinnerPlayer1:
			return StatusPlayer1Won
		case core.WinnerPlayer2:
			return StatusPlayer2Won
		}
		return StatusDraw
	}
	return ""
}

// RoomView is the getRoom result.
type RoomView struct {
	Room   *core.GameRoom `json:"room"`
	Status string         `json:"status"`
}

// VaultView is the getRoomVault result.
type VaultView struct {
	RoomID  uint64          `json:"room_id"`
	Mode    core.EscrowMode `json:"mode"`
	Vault   escrow.Vault    `json:"vault"`
	Balance uint64          `json:"balance"`
	// Owed is what the room itself is liable for; in shared mode the vault
	// balance covers every room.
	Owed uint64 `json:"owed"`
}

// ReplayView is the replayRoom result.
type ReplayView struct {
	RoomID         uint64          `json:"room_id"`
	Match          fairness.Match  `json:"match"`
	RecordedWinner core.WinnerSide `json:"recorded_winner"`
	Consistent     bool            `json:"consistent"`
}

// BalanceView is the getBalance result.
type BalanceView struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// TokenBalanceView is the getTokenBalance result.
type TokenBalanceView struct {
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}
