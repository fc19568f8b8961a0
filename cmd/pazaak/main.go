// Command pazaak is the player and operator client for a Pazaak node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/rpc"
	"github.com/tolelom/pazaak/wallet"
)

var rootCmd = &cobra.Command{
	Use:           "pazaak",
	Short:         "pazaak wager room client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("rpc_laddr", "http://localhost:8545", "node RPC endpoint")
	flags.String("token", os.Getenv("PAZAAK_RPC_TOKEN"), "RPC bearer token")
	flags.String("key", "player.key", "path to keystore file")
	flags.String("chain_id", "pazaak-dev", "chain id transactions are signed for")
	flags.Uint64("fee", 0, "native fee per transaction")
	flags.Bool("wait", true, "wait until the transaction is executed")
	flags.Duration("timeout", 30*time.Second, "how long to wait for execution")

	rootCmd.AddCommand(
		KeygenCmd(),
		CommitCmd(),
		RoomCmd(),
		TokenCmd(),
		ConfigCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func client(cmd *cobra.Command) *rpc.Client {
	addr, _ := cmd.Flags().GetString("rpc_laddr")
	token, _ := cmd.Flags().GetString("token")
	return rpc.NewClient(addr, token)
}

// loadWallet opens the keystore named by --key with PAZAAK_PASSWORD.
func loadWallet(cmd *cobra.Command) (*wallet.Wallet, error) {
	path, _ := cmd.Flags().GetString("key")
	chainID, _ := cmd.Flags().GetString("chain_id")
	priv, err := wallet.LoadKey(path, os.Getenv("PAZAAK_PASSWORD"))
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return wallet.New(priv, chainID), nil
}

type txBuilder func(w *wallet.Wallet, nonce, fee uint64) (*core.Transaction, error)

// submit signs a transaction at the account's current nonce, sends it and,
// unless --wait=false, blocks until it has executed.
func submit(cmd *cobra.Command, build txBuilder) error {
	w, err := loadWallet(cmd)
	if err != nil {
		return err
	}
	c := client(cmd)
	fee, _ := cmd.Flags().GetUint64("fee")
	wait, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	acc, err := c.Balance(ctx, w.PubKey())
	if err != nil {
		return err
	}
	tx, err := build(w, acc.Nonce, fee)
	if err != nil {
		return err
	}
	txID, err := c.SendTx(ctx, tx)
	if err != nil {
		return err
	}
	if !wait {
		return printJSON(map[string]string{"tx_id": txID})
	}
	res, err := c.WaitTx(ctx, txID, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("tx %s: %w", txID, err)
	}
	return printJSON(res)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func queryContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}
