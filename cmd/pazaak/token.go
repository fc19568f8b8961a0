package main

import (
	"github.com/spf13/cobra"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/wallet"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Stake token balances and transfers",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.AddCommand(
		TokenBalanceCmd(),
		TokenTransferCmd(),
		TokenMintToCmd(),
	)
	return cmd
}

func TokenBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a player's token balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			mint, _ := cmd.Flags().GetString("mint")
			if owner == "" {
				w, err := loadWallet(cmd)
				if err != nil {
					return err
				}
				owner = w.PubKey()
			}
			ctx, cancel := queryContext(cmd)
			defer cancel()
			v, err := client(cmd).TokenBalance(ctx, owner, mint)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	cmd.Flags().String("owner", "", "owner pubkey; defaults to the --key wallet")
	cmd.Flags().String("mint", "", "mint id; defaults to the configured stake mint")
	return cmd
}

func TokenTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send tokens to another player",
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, _ := cmd.Flags().GetString("mint")
			to, _ := cmd.Flags().GetString("to")
			amount, _ := cmd.Flags().GetUint64("amount")
			return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.TokenTransfer(mint, to, amount, nonce, fee)
			})
		},
	}
	cmd.Flags().String("mint", "", "mint id")
	cmd.MarkFlagRequired("mint")
	cmd.Flags().StringP("to", "t", "", "recipient pubkey")
	cmd.MarkFlagRequired("to")
	cmd.Flags().Uint64P("amount", "a", 0, "amount")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func TokenMintToCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue tokens to a player (mint authority only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, _ := cmd.Flags().GetString("mint")
			to, _ := cmd.Flags().GetString("to")
			amount, _ := cmd.Flags().GetUint64("amount")
			return submit(cmd, func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error) {
				return w.MintTo(mint, to, amount, nonce, fee)
			})
		},
	}
	cmd.Flags().String("mint", "", "mint id")
	cmd.MarkFlagRequired("mint")
	cmd.Flags().StringP("to", "t", "", "recipient pubkey")
	cmd.MarkFlagRequired("to")
	cmd.Flags().Uint64P("amount", "a", 0, "amount")
	cmd.MarkFlagRequired("amount")
	return cmd
}
