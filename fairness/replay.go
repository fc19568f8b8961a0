package fairness

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/tolelom/pazaak/core"
)

const (
	// StandAt is the total at which a player stops drawing.
	StandAt = 17
	// Target is the highest total that does not bust.
	Target = 20
	// TableSize is the number of cards that wins outright when filled without busting.
	TableSize = 9

	streamDomain = "pazaak-outcome"
	// Bytes at or above this are rejected so card values stay uniform.
	rejectFrom = 250
)

// Hand is one player's side of a replayed match.
type Hand struct {
	Cards []uint8 `json:"cards"`
	Total int     `json:"total"`
	Bust  bool    `json:"bust"`
}

func (h *Hand) done() bool {
	return h.Bust || h.Total >= StandAt || len(h.Cards) >= TableSize
}

func (h *Hand) draw(card uint8) {
	h.Cards = append(h.Cards, card)
	h.Total += int(card)
	h.Bust = h.Total > Target
}

func (h *Hand) fullTable() bool {
	return !h.Bust && len(h.Cards) >= TableSize
}

// Match is the full, replayable record of a room's outcome.
type Match struct {
	Player1 Hand            `json:"player1"`
	Player2 Hand            `json:"player2"`
	Winner  core.WinnerSide `json:"winner"`
}

// deck is a SHA-256 counter-mode stream of main-deck cards (1..10).
type deck struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newDeck(preimage []byte, fairnessSeed, revealedSeed uint32) *deck {
	seed := make([]byte, 0, len(streamDomain)+len(preimage)+8)
	seed = append(seed, streamDomain...)
	seed = append(seed, preimage...)
	seed = binary.BigEndian.AppendUint32(seed, fairnessSeed)
	seed = binary.BigEndian.AppendUint32(seed, revealedSeed)
	return &deck{seed: seed}
}

func (d *deck) next() uint8 {
	for {
		if len(d.buf) == 0 {
			block := sha256.Sum256(binary.BigEndian.AppendUint64(append([]byte(nil), d.seed...), d.counter))
			d.counter++
			d.buf = block[:]
		}
		b := d.buf[0]
		d.buf = d.buf[1:]
		if b < rejectFrom {
			return 1 + b%10
		}
	}
}

// Replay deals a match from the revealed preimage and both seeds. Players
// draw alternately, player1 first, until each stands at StandAt, busts above
// Target, or fills the table. It is a pure function of its inputs.
func Replay(preimage []byte, fairnessSeed, revealedSeed uint32) Match {
	d := newDeck(preimage, fairnessSeed, revealedSeed)
	var m Match
	for !m.Player1.done() || !m.Player2.done() {
		if !m.Player1.done() {
			m.Player1.draw(d.next())
		}
		if !m.Player2.done() {
			m.Player2.draw(d.next())
		}
	}
	m.Winner = decide(&m.Player1, &m.Player2)
	return m
}

func decide(p1, p2 *Hand) core.WinnerSide {
	switch {
	case p1.Bust && p2.Bust:
		return core.WinnerNone
	case p1.Bust:
		return core.WinnerPlayer2
	case p2.Bust:
		return core.WinnerPlayer1
	case p1.fullTable() && !p2.fullTable():
		return core.WinnerPlayer1
	case p2.fullTable() && !p1.fullTable():
		return core.WinnerPlayer2
	case p1.Total > p2.Total:
		return core.WinnerPlayer1
	case p2.Total > p1.Total:
		return core.WinnerPlayer2
	default:
		return core.WinnerNone
	}
}

// Outcome returns the winner of Replay(preimage, fairnessSeed, revealedSeed).
func Outcome(preimage []byte, fairnessSeed, revealedSeed uint32) core.WinnerSide {
	return Replay(preimage, fairnessSeed, revealedSeed).Winner
}
