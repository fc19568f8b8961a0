// Package token registers the native-currency and fungible-token handlers.
// Room stakes are denominated in a mint created here.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
	vm.Register(core.TxCreateMint, handleCreateMint)
	vm.Register(core.TxMintTo, handleMintTo)
	vm.Register(core.TxTokenTransfer, handleTokenTransfer)
}

// MintID returns the id a create_mint transaction assigns to its mint.
func MintID(txID string) string {
	return crypto.Hash([]byte(txID + ":mint"))
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}

	sender, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if sender.Balance < p.Amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", sender.Balance, p.Amount)
	}
	sender.Balance -= p.Amount
	if err := ctx.State.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(p.To)
	if err != nil {
		return err
	}
	if recipient.Balance > math.MaxUint64-p.Amount {
		return fmt.Errorf("recipient balance overflow")
	}
	recipient.Balance += p.Amount
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}

func handleCreateMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CreateMintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode create_mint payload: %w", err)
	}
	id := MintID(ctx.Tx.ID)
	if _, err := ctx.State.GetMint(id); err == nil {
		return fmt.Errorf("mint %s already exists", id)
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if err := ctx.State.SetMint(&core.Mint{ID: id, Authority: ctx.Tx.From, Decimals: p.Decimals}); err != nil {
		return err
	}
	ctx.Emit(events.EventMintCreated, map[string]any{
		"mint":      id,
		"authority": ctx.Tx.From,
		"decimals":  p.Decimals,
	})
	return nil
}

func handleMintTo(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintToPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode mint_to payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("mint amount must be > 0")
	}
	if p.Owner == "" {
		return errors.New("mint owner required")
	}
	addr, err := NewLedger(ctx.State).MintTo(p.Mint, ctx.Tx.From, p.Owner, p.Amount)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventTokensMinted, map[string]any{
		"mint":    p.Mint,
		"owner":   p.Owner,
		"account": addr,
		"amount":  p.Amount,
	})
	return nil
}

func handleTokenTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TokenTransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode token_transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer recipient required")
	}

	ledger := NewLedger(ctx.State)
	from := core.TokenAccountAddress(ctx.Tx.From, p.Mint)
	to := core.TokenAccountAddress(p.To, p.Mint)
	if err := ledger.EnsureAccount(to, p.To, p.Mint); err != nil {
		return err
	}
	if err := ledger.Transfer(from, to, ctx.Tx.From, p.Amount); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"mint":   p.Mint,
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}
