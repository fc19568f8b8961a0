// Package room owns the pazaak room lifecycle: Created, then Busy, then
// Finished. Every transition validates first, then moves escrow, then writes
// the new state, so a failing call leaves nothing behind.
package room

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/escrow"
	"github.com/tolelom/pazaak/fairness"
	"github.com/tolelom/pazaak/metrics"
)

var log = logrus.WithField("module", "room")

// Machine applies room transitions against a state. It reads the game
// config once, at construction, and never writes it.
type Machine struct {
	state     core.State
	cfg       core.GameConfig
	custodian escrow.Custodian
	seeds     fairness.SeedSource
}

// NewMachine builds a Machine over state using cfg and ledger for custody.
// seeds supplies the fairness seed captured at join.
func NewMachine(state core.State, cfg core.GameConfig, ledger escrow.Ledger, seeds fairness.SeedSource) (*Machine, error) {
	custodian, err := escrow.New(ledger, cfg)
	if err != nil {
		return nil, err
	}
	return &Machine{state: state, cfg: cfg, custodian: custodian, seeds: seeds}, nil
}

// Load reads the game config from state and builds a Machine over it.
func Load(state core.State, ledger escrow.Ledger, seeds fairness.SeedSource) (*Machine, error) {
	cfg, err := LoadConfig(state)
	if err != nil {
		return nil, err
	}
	return NewMachine(state, *cfg, ledger, seeds)
}

// Config returns the config the machine validates against.
func (m *Machine) Config() core.GameConfig { return m.cfg }

// Custodian returns the custodian holding the machine's stakes.
func (m *Machine) Custodian() escrow.Custodian { return m.custodian }

// StakeAccount is the token account a player's stake is drawn from and paid to.
func (m *Machine) StakeAccount(player string) string {
	return core.TokenAccountAddress(player, m.cfg.StakeMint)
}

// Get loads a room, mapping a missing record to ErrRoomNotFound.
func Get(state core.State, roomID uint64) (*core.GameRoom, error) {
	r, err := state.GetRoom(roomID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", core.ErrRoomNotFound, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}
	return r, nil
}

// Create opens roomID for player1 and escrows tokenBid from player1's stake
// account.
func (m *Machine) Create(roomID, tokenBid uint64, commitment core.Hash32, player1 string) (r *core.GameRoom, err error) {
	err = m.atomically(func() error {
		r, err = m.create(roomID, tokenBid, commitment, player1)
		return err
	})
	return r, err
}

func (m *Machine) create(roomID, tokenBid uint64, commitment core.Hash32, player1 string) (*core.GameRoom, error) {
	if tokenBid < m.cfg.MinimalBid {
		return nil, fmt.Errorf("%w: bid %d, minimal %d", core.ErrBidTooSmall, tokenBid, m.cfg.MinimalBid)
	}
	if _, err := m.state.GetRoom(roomID); err == nil {
		return nil, fmt.Errorf("%w: %d", core.ErrDuplicateRoom, roomID)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}

	vault, err := m.custodian.Open(roomID)
	if err != nil {
		return nil, err
	}
	if err := m.custodian.Deposit(vault, m.StakeAccount(player1), player1, tokenBid); err != nil {
		return nil, err
	}

	r := &core.GameRoom{ID: roomID, State: &core.CreatedRoom{
		Player1:        player1,
		TokenBid:       tokenBid,
		CommitmentHash: commitment,
	}}
	if err := m.state.SetRoom(r); err != nil {
		return nil, err
	}
	metrics.RoomsCreated.Inc(1)
	log.WithFields(logrus.Fields{"room_id": roomID, "player1": player1, "bid": tokenBid}).Info("room created")
	return r, nil
}

// Join seats player2 in a created room and escrows a matching bid.
func (m *Machine) Join(roomID uint64, player2 string, contribution uint32) (r *core.GameRoom, err error) {
	err = m.atomically(func() error {
		r, err = m.join(roomID, player2, contribution)
		return err
	})
	return r, err
}

func (m *Machine) join(roomID uint64, player2 string, contribution uint32) (*core.GameRoom, error) {
	r, err := Get(m.state, roomID)
	if err != nil {
		return nil, err
	}
	created, ok := r.State.(*core.CreatedRoom)
	if !ok {
		return nil, fmt.Errorf("%w: room %d is %s, want %s", core.ErrWrongState, roomID, r.State.Phase(), core.PhaseCreated)
	}
	if player2 == created.Player1 {
		return nil, fmt.Errorf("%w: room %d", core.ErrSelfPlay, roomID)
	}
	// A config update may have raised the floor since the room was created.
	if created.TokenBid < m.cfg.MinimalBid {
		return nil, fmt.Errorf("%w: bid %d, minimal %d", core.ErrBidTooSmall, created.TokenBid, m.cfg.MinimalBid)
	}

	if err := m.custodian.Deposit(m.custodian.Vault(roomID), m.StakeAccount(player2), player2, created.TokenBid); err != nil {
		return nil, err
	}

	seed := m.seeds.FairnessSeed(roomID, contribution)
	r.State = created.Join(player2, seed)
	if err := m.state.SetRoom(r); err != nil {
		return nil, err
	}
	metrics.RoomsJoined.Inc(1)
	log.WithFields(logrus.Fields{"room_id": roomID, "player2": player2, "fairness_seed": seed}).Info("room joined")
	return r, nil
}

// Finish verifies the revealed preimage against the room's commitment,
// computes the winner and pays out the pooled stake. caller must be the
// config's game authority.
func (m *Machine) Finish(roomID uint64, caller string, preimage []byte, revealedSeed uint32) (r *core.GameRoom, err error) {
	err = m.atomically(func() error {
		r, err = m.finish(roomID, caller, preimage, revealedSeed)
		return err
	})
	return r, err
}

func (m *Machine) finish(roomID uint64, caller string, preimage []byte, revealedSeed uint32) (*core.GameRoom, error) {
	if caller != m.cfg.GameAuthority {
		return nil, fmt.Errorf("%w: only the game authority may finish rooms", core.ErrUnauthorized)
	}
	r, err := Get(m.state, roomID)
	if err != nil {
		return nil, err
	}
	busy, ok := r.State.(*core.BusyRoom)
	if !ok {
		return nil, fmt.Errorf("%w: room %d is %s, want %s", core.ErrWrongState, roomID, r.State.Phase(), core.PhaseBusy)
	}
	if err := fairness.Verify(preimage, busy.CommitmentHash); err != nil {
		metrics.RevealsRejected.Inc(1)
		log.WithField("room_id", roomID).Warn("reveal rejected")
		return nil, fmt.Errorf("room %d: %w", roomID, err)
	}

	winner := fairness.Outcome(preimage, busy.FairnessSeed, revealedSeed)
	if err := m.payout(roomID, busy, winner); err != nil {
		return nil, err
	}

	r.State = busy.Finish(revealedSeed, winner)
	if err := m.state.SetRoom(r); err != nil {
		return nil, err
	}
	metrics.RoomsFinished.Inc(1)
	log.WithFields(logrus.Fields{"room_id": roomID, "winner": winner, "seed": revealedSeed}).Info("room finished")
	return r, nil
}

// atomically runs fn against a state checkpoint and rolls back every write
// fn made if it fails.
func (m *Machine) atomically(fn func() error) error {
	snap, err := m.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := fn(); err != nil {
		if revertErr := m.state.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("revert: %v: %w", revertErr, err)
		}
		return err
	}
	return nil
}

func (m *Machine) payout(roomID uint64, busy *core.BusyRoom, winner core.WinnerSide) error {
	vault := m.custodian.Vault(roomID)
	pool := 2 * busy.TokenBid
	switch winner {
	case core.WinnerPlayer1:
		return m.custodian.Release(vault, m.StakeAccount(busy.Player1), pool)
	case core.WinnerPlayer2:
		return m.custodian.Release(vault, m.StakeAccount(busy.Player2), pool)
	default:
		return m.custodian.Split(vault, []escrow.Leg{
			{To: m.StakeAccount(busy.Player1), Amount: busy.TokenBid},
			{To: m.StakeAccount(busy.Player2), Amount: busy.TokenBid},
		})
	}
}
