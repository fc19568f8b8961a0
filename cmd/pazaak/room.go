package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/wallet"
)

func RoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create, join, finish and inspect wager rooms",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.AddCommand(
		RoomCreateCmd(),
		RoomJoinCmd(),
		RoomFinishCmd(),
		RoomGetCmd(),
		RoomVaultCmd(),
		RoomListCmd(),
		RoomReplayCmd(),
	)
	return cmd
}

func addRoomIDFlag(cmd *cobra.Command) {
	cmd.Flags().Uint64P("room", "r", 0, "room id")
	cmd.MarkFlagRequired("room")
}

func decodePreimage(cmd *cobra.Command) ([]byte, error) {
	s, _ := cmd.Flags().GetString("preimage")
	preimage, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("preimage must be hex: %w", err)
	}
	return preimage, nil
}

func RoomCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a room, escrowing the bid behind a preimage commitment",
		RunE:  roomCreate,
	}
	addRoomIDFlag(cmd)
	cmd.Flags().Uint64P("bid", "b", 0, "token bid")
	cmd.MarkFlagRequired("bid")
	cmd.Flags().StringP("preimage", "p", "", "hex preimage to commit to; random when empty")
	return cmd
}

func roomCreate(cmd *cobra.Command, args []string) error {
	roomID, _ := cmd.Flags().GetUint64("room")
	bid, _ := cmd.Flags().GetUint64("bid")
	preimage, err := decodePreimage(cmd)
	if err != nil {
		return err
	}
	if len(preimage) == 0 {
		if preimage, err = randomPreimage(32); err != nil {
			return err
		}
		// The preimage is needed again to finish the room.
		fmt.Fprintf(os.Stderr, "preimage: %s\n", hex.EncodeToString(preimage))
	}
	return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
		return w.CreateRoom(roomID, bid, preimage, nonce, fee)
	})
}

func RoomJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a created room as player2, escrowing a matching bid",
		RunE:  roomJoin,
	}
	addRoomIDFlag(cmd)
	cmd.Flags().Uint32P("contribution", "c", 0, "fairness contribution")
	return cmd
}

func roomJoin(cmd *cobra.Command, args []string) error {
	roomID, _ := cmd.Flags().GetUint64("room")
	contribution, _ := cmd.Flags().GetUint32("contribution")
	return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
		return w.JoinRoom(roomID, contribution, nonce, fee)
	})
}

func RoomFinishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Reveal the preimage and seed and settle a busy room (game authority only)",
		RunE:  roomFinish,
	}
	addRoomIDFlag(cmd)
	cmd.Flags().StringP("preimage", "p", "", "hex preimage player1 committed to")
	cmd.MarkFlagRequired("preimage")
	cmd.Flags().Uint32P("seed", "s", 0, "oracle seed")
	return cmd
}

func roomFinish(cmd *cobra.Command, args []string) error {
	roomID, _ := cmd.Flags().GetUint64("room")
	seed, _ := cmd.Flags().GetUint32("seed")
	preimage, err := decodePreimage(cmd)
	if err != nil {
		return err
	}
	return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
		return w.FinishRoom(roomID, preimage, seed, nonce, fee)
	})
}

func RoomGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a room and its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, _ := cmd.Flags().GetUint64("room")
			ctx, cancel := queryContext(cmd)
			defer cancel()
			v, err := client(cmd).Room(ctx, roomID)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	addRoomIDFlag(cmd)
	return cmd
}

func RoomVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Show where a room's stakes are held",
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, _ := cmd.Flags().GetUint64("room")
			ctx, cancel := queryContext(cmd)
			defer cancel()
			v, err := client(cmd).RoomVault(ctx, roomID)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	addRoomIDFlag(cmd)
	return cmd
}

func RoomListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rooms a player created or joined",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, _ := cmd.Flags().GetString("player")
			if player == "" {
				w, err := loadWallet(cmd)
				if err != nil {
					return err
				}
				player = w.PubKey()
			}
			ctx, cancel := queryContext(cmd)
			defer cancel()
			ids, err := client(cmd).RoomsByPlayer(ctx, player)
			if err != nil {
				return err
			}
			return printJSON(ids)
		},
	}
	cmd.Flags().String("player", "", "player pubkey; defaults to the --key wallet")
	return cmd
}

func RoomReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute a finished room's match and check the recorded winner",
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, _ := cmd.Flags().GetUint64("room")
			preimage, _ := cmd.Flags().GetString("preimage")
			ctx, cancel := queryContext(cmd)
			defer cancel()
			v, err := client(cmd).Replay(ctx, roomID, preimage)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	addRoomIDFlag(cmd)
	cmd.Flags().StringP("preimage", "p", "", "hex preimage; defaults to the recorded reveal")
	return cmd
}
