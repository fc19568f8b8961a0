// Package escrow custodies room stakes. A Custodian moves tokens between
// player accounts and a vault through an external transfer Ledger; every
// refusal by the ledger surfaces as core.ErrTransferFailed.
package escrow

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/metrics"
)

var log = logrus.WithField("module", "escrow")

// Ledger is the token transfer primitive escrow is built on.
type Ledger interface {
	Transfer(from, to, authority string, amount uint64) error
	EnsureAccount(address, owner, mint string) error
	Balance(address string) (uint64, error)
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
}

// Vault is a token account together with the identity allowed to spend it.
type Vault struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
}

// Leg is one payout of a Split.
type Leg struct {
	To     string
	Amount uint64
}

// Custodian holds stakes for rooms.
type Custodian interface {
	// Vault returns the vault that holds roomID's stake.
	Vault(roomID uint64) Vault
	// Open makes sure roomID's vault exists and can receive the stake mint.
	Open(roomID uint64) (Vault, error)
	// Deposit moves amount from a player's token account into v.
	Deposit(v Vault, from, authority string, amount uint64) error
	// Release pays amount out of v.
	Release(v Vault, to string, amount uint64) error
	// Split pays every leg out of v, or none of them.
	Split(v Vault, legs []Leg) error
}

// New returns the custodian selected by cfg.EscrowMode.
func New(ledger Ledger, cfg core.GameConfig) (Custodian, error) {
	switch cfg.EscrowMode {
	case core.EscrowPerRoom:
		return NewPerRoom(ledger, cfg.StakeMint), nil
	case core.EscrowShared:
		return NewShared(ledger, cfg.StakeTreasury, cfg.StakeMint), nil
	default:
		return nil, fmt.Errorf("unknown escrow mode %q", cfg.EscrowMode)
	}
}

func failed(err error) error {
	return fmt.Errorf("%w: %w", core.ErrTransferFailed, err)
}

// mover implements the transfer operations shared by both custodians.
type mover struct {
	ledger Ledger
}

func (m mover) Deposit(v Vault, from, authority string, amount uint64) error {
	if err := m.ledger.Transfer(from, v.Address, authority, amount); err != nil {
		return failed(err)
	}
	metrics.EscrowDeposited.Inc(int64(amount))
	log.WithFields(logrus.Fields{"vault": v.Address, "from": from, "amount": amount}).Debug("stake deposited")
	return nil
}

func (m mover) Release(v Vault, to string, amount uint64) error {
	if err := m.ledger.Transfer(v.Address, to, v.Authority, amount); err != nil {
		return failed(err)
	}
	metrics.EscrowReleased.Inc(int64(amount))
	log.WithFields(logrus.Fields{"vault": v.Address, "to": to, "amount": amount}).Debug("stake released")
	return nil
}

func (m mover) Split(v Vault, legs []Leg) error {
	snap, err := m.ledger.Snapshot()
	if err != nil {
		return failed(err)
	}
	var total uint64
	for i, leg := range legs {
		if err := m.ledger.Transfer(v.Address, leg.To, v.Authority, leg.Amount); err != nil {
			if revertErr := m.ledger.RevertToSnapshot(snap); revertErr != nil {
				return fmt.Errorf("revert split: %v: %w", revertErr, failed(err))
			}
			return fmt.Errorf("split leg %d: %w", i, failed(err))
		}
		total += leg.Amount
	}
	metrics.EscrowReleased.Inc(int64(total))
	log.WithFields(logrus.Fields{"vault": v.Address, "legs": len(legs), "amount": total}).Debug("stake split")
	return nil
}

// PerRoom gives every room its own vault at RoomVaultAddress, spendable only
// by the room's derived identity.
type PerRoom struct {
	mover
	mint string
}

// NewPerRoom returns a per-room custodian for mint.
func NewPerRoom(ledger Ledger, mint string) *PerRoom {
	return &PerRoom{mover: mover{ledger: ledger}, mint: mint}
}

func (p *PerRoom) Vault(roomID uint64) Vault {
	return Vault{Address: core.RoomVaultAddress(roomID), Authority: core.RoomAddress(roomID)}
}

func (p *PerRoom) Open(roomID uint64) (Vault, error) {
	v := p.Vault(roomID)
	if err := p.ledger.EnsureAccount(v.Address, v.Authority, p.mint); err != nil {
		return Vault{}, failed(err)
	}
	return v, nil
}

// Shared pools every room's stake in the config treasury. The vault balance
// says nothing about a single room; each room's liability is its token bid.
type Shared struct {
	mover
	treasury string
	mint     string
}

// NewShared returns a custodian backed by the treasury token account.
func NewShared(ledger Ledger, treasury, mint string) *Shared {
	return &Shared{mover: mover{ledger: ledger}, treasury: treasury, mint: mint}
}

func (s *Shared) Vault(uint64) Vault {
	return Vault{Address: s.treasury, Authority: core.ConfigAddress()}
}

func (s *Shared) Open(roomID uint64) (Vault, error) {
	v := s.Vault(roomID)
	if err := s.ledger.EnsureAccount(v.Address, v.Authority, s.mint); err != nil {
		return Vault{}, failed(err)
	}
	return v, nil
}
