// Package pazaak registers the transaction handlers for the game config and
// the room lifecycle. Handlers decode the payload, run the room machine with
// the signer as the acting player, and emit an event on success.
package pazaak

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/fairness"
	"github.com/tolelom/pazaak/room"
	"github.com/tolelom/pazaak/vm"
	"github.com/tolelom/pazaak/vm/modules/token"
)

func init() {
	vm.Register(core.TxInitGameConfig, handleInitConfig)
	vm.Register(core.TxUpdateGameConfig, handleUpdateConfig)
	vm.Register(core.TxCreateRoom, handleCreateRoom)
	vm.Register(core.TxJoinRoom, handleJoinRoom)
	vm.Register(core.TxFinishRoom, handleFinishRoom)
}

func configData(cfg *core.GameConfig) map[string]any {
	return map[string]any{
		"authority":      cfg.Authority,
		"game_authority": cfg.GameAuthority,
		"stake_mint":     cfg.StakeMint,
		"stake_treasury": cfg.StakeTreasury,
		"minimal_bid":    cfg.MinimalBid,
		"escrow_mode":    string(cfg.EscrowMode),
	}
}

func handleInitConfig(ctx *vm.Context, payload json.RawMessage) error {
	var p core.InitGameConfigPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode init config payload: %w", err)
	}
	cfg, err := room.InitConfig(ctx.State, token.NewLedger(ctx.State), ctx.Tx.From, p)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventConfigUpdated, configData(cfg))
	return nil
}

func handleUpdateConfig(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdateGameConfigPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update config payload: %w", err)
	}
	cfg, err := room.UpdateConfig(ctx.State, ctx.Tx.From, p)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventConfigUpdated, configData(cfg))
	return nil
}

// machine builds a room machine for the current transaction. The join-time
// seed is drawn from the block beacon of the enclosing block.
func machine(ctx *vm.Context) (*room.Machine, error) {
	beacon := fairness.BlockBeacon{PrevHash: ctx.Block.Header.PrevHash, TxID: ctx.Tx.ID}
	return room.Load(ctx.State, token.NewLedger(ctx.State), beacon)
}

func handleCreateRoom(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CreateRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode create room payload: %w", err)
	}
	m, err := machine(ctx)
	if err != nil {
		return err
	}
	if _, err := m.Create(p.RoomID, p.TokenBid, p.CommitmentHash, ctx.Tx.From); err != nil {
		return err
	}
	ctx.Emit(events.EventRoomCreated, map[string]any{
		"room_id":         p.RoomID,
		"player1":         ctx.Tx.From,
		"token_bid":       p.TokenBid,
		"commitment_hash": p.CommitmentHash.String(),
		"vault":           m.Custodian().Vault(p.RoomID).Address,
	})
	return nil
}

func handleJoinRoom(ctx *vm.Context, payload json.RawMessage) error {
	var p core.JoinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode join room payload: %w", err)
	}
	m, err := machine(ctx)
	if err != nil {
		return err
	}
	r, err := m.Join(p.RoomID, ctx.Tx.From, p.FairnessContribution)
	if err != nil {
		return err
	}
	busy := r.State.(*core.BusyRoom)
	ctx.Emit(events.EventRoomJoined, map[string]any{
		"room_id":       p.RoomID,
		"player1":       busy.Player1,
		"player2":       busy.Player2,
		"token_bid":     busy.TokenBid,
		"fairness_seed": busy.FairnessSeed,
	})
	return nil
}

func handleFinishRoom(ctx *vm.Context, payload json.RawMessage) error {
	var p core.FinishRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode finish room payload: %w", err)
	}
	preimage, err := hex.DecodeString(p.RevealedPreimage)
	if err != nil {
		return fmt.Errorf("revealed preimage must be hex: %w", err)
	}
	m, err := machine(ctx)
	if err != nil {
		return err
	}
	r, err := m.Finish(p.RoomID, ctx.Tx.From, preimage, p.RevealedSeed)
	if err != nil {
		if errors.Is(err, core.ErrCommitmentMismatch) {
			ctx.Reject(events.EventRevealRejected, map[string]any{
				"room_id": p.RoomID,
				"caller":  ctx.Tx.From,
			})
		}
		return err
	}
	fin := r.State.(*core.FinishedRoom)
	ctx.Emit(events.EventRoomFinished, map[string]any{
		"room_id":           p.RoomID,
		"player1":           fin.Player1,
		"player2":           fin.Player2,
		"token_bid":         fin.TokenBid,
		"winner":            fin.Winner.String(),
		"seed":              fin.Seed,
		"fairness_seed":     fin.FairnessSeed,
		"revealed_preimage": p.RevealedPreimage,
	})
	return nil
}
