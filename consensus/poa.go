// Package consensus implements Proof-of-Authority block production.
// Validators propose blocks in round-robin order; block order is what
// serializes competing transitions on the same room.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/config"
	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/metrics"
	"github.com/tolelom/pazaak/vm"
)

var log = logrus.WithField("module", "consensus")

// ErrNotProposer is returned when another validator owns the next height.
var ErrNotProposer = errors.New("not the proposer for this round")

// PoA is the Proof-of-Authority consensus engine.
type PoA struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
}

// New creates a PoA engine for the local validator identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
	}
}

// IsProposer reports whether this node should propose the next block.
func (p *PoA) IsProposer() bool {
	if len(p.cfg.Validators) == 0 {
		return false
	}
	nextHeight := p.bc.Height() + 1
	idx := int(nextHeight) % len(p.cfg.Validators)
	return p.cfg.Validators[idx] == p.pubKey.Hex()
}

// ProduceBlock builds, executes, signs and commits the next block.
// Transactions that fail are dropped from the block and the mempool; their
// writes were already rolled back by the executor. Execution events are
// published only after the state commit; a block that fails to store
// takes its events with it.
func (p *PoA) ProduceBlock() (*core.Block, error) {
	if !p.IsProposer() {
		return nil, ErrNotProposer
	}

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = 500
	}
	txs := p.mempool.Pending(limit)

	tip := p.bc.Tip()
	prevHash, nextHeight := config.GenesisHash, int64(1)
	if tip != nil {
		prevHash, nextHeight = tip.Hash, tip.Header.Height+1
	}

	snap, err := p.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	block := core.NewBlock(nextHeight, prevHash, p.pubKey.Hex(), txs)
	applied, failed := p.exec.ExecuteBlock(block)
	block.Retain(applied)

	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and can be rolled back.
	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.bc.AddBlock(block); err != nil {
		if revertErr := p.state.RevertToSnapshot(snap); revertErr != nil {
			log.Errorf("revert after failed block: %v", revertErr)
		}
		p.exec.Discard()
		return nil, fmt.Errorf("add block: %w", err)
	}

	// Flush state only after the block is safely stored.
	if err := p.state.Commit(); err != nil {
		log.Fatalf("block %d stored but state commit failed: %v", block.Header.Height, err)
	}
	metrics.BlocksProduced.Inc(1)
	p.exec.Publish()

	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(applied), "failed": len(failed)},
	})

	txIDs := make([]string, len(txs))
	for i, tx := range txs {
		txIDs[i] = tx.ID
	}
	p.mempool.Remove(txIDs)

	if len(txs) > 0 {
		log.WithFields(logrus.Fields{
			"height": block.Header.Height,
			"txs":    len(applied),
			"failed": len(failed),
		}).Info("block produced")
	}
	return block, nil
}

// Run produces a block every interval while this node is the proposer. It
// blocks until ctx is cancelled.
func (p *PoA) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				log.Errorf("produce block: %v", err)
			}
		}
	}
}
