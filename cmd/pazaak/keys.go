package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/pazaak/fairness"
	"github.com/tolelom/pazaak/wallet"
)

func KeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair and save it to the --key keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("key")
			chainID, _ := cmd.Flags().GetString("chain_id")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			w, err := wallet.Generate(chainID)
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(path, os.Getenv("PAZAAK_PASSWORD"), w.PrivKey()); err != nil {
				return err
			}
			return printJSON(map[string]string{"pub_key": w.PubKey(), "keystore": path})
		},
	}
}

func CommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Draw a random preimage and print it with its commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _ := cmd.Flags().GetInt("size")
			preimage, err := randomPreimage(size)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"preimage":   hex.EncodeToString(preimage),
				"commitment": fairness.Commit(preimage).String(),
			})
		},
	}
	cmd.Flags().Int("size", 32, "preimage length in bytes")
	return cmd
}

func randomPreimage(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("preimage size must be positive")
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
