package main

import (
	"github.com/spf13/cobra"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/wallet"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Game config administration",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.AddCommand(
		ConfigInitCmd(),
		ConfigUpdateCmd(),
		ConfigGetCmd(),
	)
	return cmd
}

func ConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the game config; the signer becomes its authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p core.InitGameConfigPayload
			p.GameAuthority, _ = cmd.Flags().GetString("game_authority")
			p.StakeMint, _ = cmd.Flags().GetString("mint")
			p.StakeTreasury, _ = cmd.Flags().GetString("treasury")
			p.MinimalBid, _ = cmd.Flags().GetUint64("minimal_bid")
			mode, _ := cmd.Flags().GetString("mode")
			p.EscrowMode = core.EscrowMode(mode)
			return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.InitConfig(p, nonce, fee)
			})
		},
	}
	cmd.Flags().String("game_authority", "", "pubkey allowed to finish rooms")
	cmd.MarkFlagRequired("game_authority")
	cmd.Flags().String("mint", "", "stake mint id")
	cmd.MarkFlagRequired("mint")
	cmd.Flags().String("treasury", "", "existing treasury token account; opened automatically when empty")
	cmd.Flags().Uint64("minimal_bid", 0, "smallest accepted bid")
	cmd.MarkFlagRequired("minimal_bid")
	cmd.Flags().String("mode", string(core.EscrowPerRoom), "escrow mode: per_room or shared")
	return cmd
}

func ConfigUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the game authority or minimal bid (config authority only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p core.UpdateGameConfigPayload
			p.GameAuthority, _ = cmd.Flags().GetString("game_authority")
			p.MinimalBid, _ = cmd.Flags().GetUint64("minimal_bid")
			return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.UpdateConfig(p, nonce, fee)
			})
		},
	}
	cmd.Flags().String("game_authority", "", "new game authority pubkey")
	cmd.Flags().Uint64("minimal_bid", 0, "new minimal bid")
	return cmd
}

func ConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the game config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := queryContext(cmd)
			defer cancel()
			cfg, err := client(cmd).Config(ctx)
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}
