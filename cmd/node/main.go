// Command node starts a Pazaak ledger node.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tolelom/pazaak/config"
	"github.com/tolelom/pazaak/consensus"
	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/indexer"
	"github.com/tolelom/pazaak/internal/logging"
	"github.com/tolelom/pazaak/rpc"
	"github.com/tolelom/pazaak/storage"
	"github.com/tolelom/pazaak/vm"
	"github.com/tolelom/pazaak/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/pazaak/vm/modules/pazaak"
	_ "github.com/tolelom/pazaak/vm/modules/token"
)

var log = logrus.WithField("module", "node")

func main() {
	cfgPath := flag.String("config", "config.toml", "path to config file (.toml or .json)")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	// Read keystore password from environment (CLI flags leak via ps).
	password := os.Getenv("PAZAAK_PASSWORD")
	if password == "" {
		log.Warn("PAZAAK_PASSWORD not set, keystore uses an empty password")
	}

	if *genKey {
		w, err := wallet.Generate(cfg.Genesis.ChainID)
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	if err := run(cfg, *keyPath, password); err != nil {
		log.Fatal(err)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, keyPath, password string) error {
	privKey, err := wallet.LoadKey(keyPath, password)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	if len(cfg.Validators) == 0 {
		log.Warn("no validators configured, running as the single local validator")
		cfg.Validators = []string{privKey.Public().Hex()}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return err
	}
	defer db.Close()

	// Blocks, state and indexes share one DB under distinct key prefixes.
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	if bc.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.WithField("hash", genesis.Hash).Info("genesis block committed")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool(cfg.Genesis.ChainID)
	exec := vm.NewExecutor(state, emitter)
	log.WithField("tx_types", vm.RegisteredTypes()).Debug("vm modules registered")
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	handler := rpc.NewHandler(bc, mempool, state.Committed(), idx)
	server := rpc.NewServer(rpcAddr, handler, emitter, rpc.ServerOptions{
		AuthToken: cfg.RPCAuthToken,
		RateLimit: cfg.RPCRateLimit,
		RateBurst: cfg.RPCRateBurst,
	})
	if err := server.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	if cfg.RPCAuthToken != "" {
		log.Info("rpc bearer token authentication enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"validator": privKey.Public().Hex(),
			"interval":  time.Duration(cfg.BlockInterval).String(),
		}).Info("consensus running")
		return poa.Run(ctx, time.Duration(cfg.BlockInterval))
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		// Consensus stops on the same context; the server goes after it.
		return server.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
