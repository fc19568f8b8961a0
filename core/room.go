package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Hash32 is a 32-byte digest, hex-encoded in JSON.
type Hash32 [32]byte

// String returns the lowercase hex form of h.
func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is all zeros.
func (h Hash32) IsZero() bool { return h == Hash32{} }

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash32) UnmarshalText(text []byte) error {
	parsed, err := ParseHash32(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash32 decodes a 64-char hex string.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// WinnerSide is the outcome of a finished room. WinnerNone is a draw.
type WinnerSide uint8

const (
	WinnerNone WinnerSide = iota
	WinnerPlayer1
	WinnerPlayer2
)

func (w WinnerSide) String() string {
	switch w {
	case WinnerNone:
		return "none"
	case WinnerPlayer1:
		return "player1"
	case WinnerPlayer2:
		return "player2"
	default:
		return fmt.Sprintf("winner(%d)", uint8(w))
	}
}

func (w WinnerSide) MarshalText() ([]byte, error) {
	if w > WinnerPlayer2 {
		return nil, fmt.Errorf("invalid winner side %d", uint8(w))
	}
	return []byte(w.String()), nil
}

func (w *WinnerSide) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*w = WinnerNone
	case "player1":
		*w = WinnerPlayer1
	case "player2":
		*w = WinnerPlayer2
	default:
		return fmt.Errorf("invalid winner side %q", text)
	}
	return nil
}

// Phase names the active variant of a room's state.
type Phase string

const (
	PhaseCreated  Phase = "created"
	PhaseBusy     Phase = "busy"
	PhaseFinished Phase = "finished"
)

// RoomState is implemented by exactly three variants: *CreatedRoom,
// *BusyRoom and *FinishedRoom.
type RoomState interface {
	Phase() Phase
	roomState()
}

// CreatedRoom holds player1's stake and commitment while waiting for an opponent.
type CreatedRoom struct {
	Player1        string `json:"player1"`
	TokenBid       uint64 `json:"token_bid"`
	CommitmentHash Hash32 `json:"commitment_hash"`
}

// BusyRoom holds both stakes and the join-time fairness seed.
type BusyRoom struct {
	Player1        string `json:"player1"`
	Player2        string `json:"player2"`
	TokenBid       uint64 `json:"token_bid"`
	CommitmentHash Hash32 `json:"commitment_hash"`
	FairnessSeed   uint32 `json:"fairness_seed"`
}

// FinishedRoom is terminal. Seed is the revealed seed supplied at finish.
type FinishedRoom struct {
	Player1        string     `json:"player1"`
	Player2        string     `json:"player2"`
	TokenBid       uint64     `json:"token_bid"`
	CommitmentHash Hash32     `json:"commitment_hash"`
	FairnessSeed   uint32     `json:"fairness_seed"`
	Seed           uint32     `json:"seed"`
	Winner         WinnerSide `json:"winner"`
}

func (*CreatedRoom) Phase() Phase  { return PhaseCreated }
func (*BusyRoom) Phase() Phase     { return PhaseBusy }
func (*FinishedRoom) Phase() Phase { return PhaseFinished }

func (*CreatedRoom) roomState()  {}
func (*BusyRoom) roomState()     {}
func (*FinishedRoom) roomState() {}

// Join moves a created room to busy.
func (r *CreatedRoom) Join(player2 string, fairnessSeed uint32) *BusyRoom {
	return &BusyRoom{
		Player1:        r.Player1,
		Player2:        player2,
		TokenBid:       r.TokenBid,
		CommitmentHash: r.CommitmentHash,
		FairnessSeed:   fairnessSeed,
	}
}

// Finish moves a busy room to finished.
func (r *BusyRoom) Finish(seed uint32, winner WinnerSide) *FinishedRoom {
	return &FinishedRoom{
		Player1:        r.Player1,
		Player2:        r.Player2,
		TokenBid:       r.TokenBid,
		CommitmentHash: r.CommitmentHash,
		FairnessSeed:   r.FairnessSeed,
		Seed:           seed,
		Winner:         winner,
	}
}

// GameRoom is the persistent record of one room.
type GameRoom struct {
	ID    uint64
	State RoomState
}

// roomJSON mirrors the tagged union: exactly one variant field is set.
type roomJSON struct {
	ID       uint64        `json:"id"`
	Created  *CreatedRoom  `json:"created,omitempty"`
	Busy     *BusyRoom     `json:"busy,omitempty"`
	Finished *FinishedRoom `json:"finished,omitempty"`
}

func (r GameRoom) MarshalJSON() ([]byte, error) {
	out := roomJSON{ID: r.ID}
	switch s := r.State.(type) {
	case *CreatedRoom:
		out.Created = s
	case *BusyRoom:
		out.Busy = s
	case *FinishedRoom:
		out.Finished = s
	default:
		return nil, fmt.Errorf("room %d: unknown state %T", r.ID, r.State)
	}
	return json.Marshal(out)
}

func (r *GameRoom) UnmarshalJSON(data []byte) error {
	var in roomJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var states []RoomState
	if in.Created != nil {
		states = append(states, in.Created)
	}
	if in.Busy != nil {
		states = append(states, in.Busy)
	}
	if in.Finished != nil {
		states = append(states, in.Finished)
	}
	if len(states) != 1 {
		return errors.New("room record must carry exactly one state")
	}
	r.ID = in.ID
	r.State = states[0]
	return nil
}
