package token

import (
	"errors"
	"fmt"
	"math"

	"github.com/tolelom/pazaak/core"
)

var (
	ErrAccountNotFound   = errors.New("token account not found")
	ErrMintNotFound      = errors.New("mint not found")
	ErrOwnerMismatch     = errors.New("authority does not own source account")
	ErrMintMismatch      = errors.New("token accounts hold different mints")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrOverflow          = errors.New("token amount overflow")
	ErrAccountConflict   = errors.New("token account exists with different owner or mint")
)

// Ledger moves tokens between token accounts stored in a core.State. Every
// method either applies fully or leaves state untouched.
type Ledger struct {
	state core.State
}

// NewLedger wraps state.
func NewLedger(state core.State) *Ledger {
	return &Ledger{state: state}
}

func (l *Ledger) account(address string) (*core.TokenAccount, error) {
	ta, err := l.state.GetTokenAccount(address)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return ta, err
}

// Transfer moves amount from one token account to another. authority must
// own the source account, and both accounts must hold the same mint.
func (l *Ledger) Transfer(from, to, authority string, amount uint64) error {
	src, err := l.account(from)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, from)
	}
	dst, err := l.account(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s", ErrOverflow, to)
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := l.state.SetTokenAccount(src); err != nil {
		return err
	}
	return l.state.SetTokenAccount(dst)
}

// EnsureAccount opens an empty token account at address unless one already
// exists. An existing account must match owner and mint.
func (l *Ledger) EnsureAccount(address, owner, mint string) error {
	ta, err := l.state.GetTokenAccount(address)
	switch {
	case err == nil:
		if ta.Owner != owner || ta.Mint != mint {
			return fmt.Errorf("%w: %s", ErrAccountConflict, address)
		}
		return nil
	case !errors.Is(err, core.ErrNotFound):
		return err
	}
	if _, err := l.Mint(mint); err != nil {
		return err
	}
	return l.state.SetTokenAccount(&core.TokenAccount{Address: address, Mint: mint, Owner: owner})
}

// Balance returns the amount held at address.
func (l *Ledger) Balance(address string) (uint64, error) {
	ta, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}

// Mint loads a mint by id.
func (l *Ledger) Mint(id string) (*core.Mint, error) {
	m, err := l.state.GetMint(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, id)
	}
	return m, err
}

// MintTo issues amount new tokens into owner's canonical account for mintID.
func (l *Ledger) MintTo(mintID, authority, owner string, amount uint64) (string, error) {
	m, err := l.Mint(mintID)
	if err != nil {
		return "", err
	}
	if m.Authority != authority {
		return "", fmt.Errorf("%w: mint %s", core.ErrUnauthorized, mintID)
	}
	if m.Supply > math.MaxUint64-amount {
		return "", fmt.Errorf("%w: mint %s supply", ErrOverflow, mintID)
	}
	addr := core.TokenAccountAddress(owner, mintID)
	if err := l.EnsureAccount(addr, owner, mintID); err != nil {
		return "", err
	}
	ta, err := l.account(addr)
	if err != nil {
		return "", err
	}
	if ta.Amount > math.MaxUint64-amount {
		return "", fmt.Errorf("%w: account %s", ErrOverflow, addr)
	}
	ta.Amount += amount
	m.Supply += amount
	if err := l.state.SetTokenAccount(ta); err != nil {
		return "", err
	}
	return addr, l.state.SetMint(m)
}

// Snapshot and RevertToSnapshot expose the underlying state checkpoints so
// callers can group several transfers into one all-or-nothing unit.
func (l *Ledger) Snapshot() (int, error) { return l.state.Snapshot() }

func (l *Ledger) RevertToSnapshot(id int) error { return l.state.RevertToSnapshot(id) }
