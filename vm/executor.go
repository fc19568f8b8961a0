package vm

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/metrics"
)

var log = logrus.WithField("module", "vm")

// Context is passed to every Handler and provides access to the chain state,
// the current block and the triggering transaction. Events a handler emits
// are held with its writes and dropped if the transaction fails.
type Context struct {
	State core.State
	Block *core.Block
	Tx    *core.Transaction

	events   []events.Event
	rejected []events.Event
}

func (c *Context) event(typ events.EventType, data map[string]any) events.Event {
	return events.Event{
		Type:        typ,
		TxID:        c.Tx.ID,
		BlockHeight: c.Block.Header.Height,
		Data:        data,
	}
}

// Emit records an event stamped with the current tx and block.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.events = append(c.events, c.event(typ, data))
}

// Reject records an event that is published only if the transaction fails.
func (c *Context) Reject(typ events.EventType, data map[string]any) {
	c.rejected = append(c.rejected, c.event(typ, data))
}

// Executor applies transactions to the state using the global Handler
// registry. Events are queued until Publish so subscribers only ever see
// committed state.
type Executor struct {
	state   core.State
	emitter *events.Emitter

	mu      sync.Mutex
	pending []events.Event
}

// NewExecutor creates an Executor with the given state and event emitter.
func NewExecutor(state core.State, emitter *events.Emitter) *Executor {
	return &Executor{state: state, emitter: emitter}
}

func (e *Executor) queue(evs ...events.Event) {
	e.mu.Lock()
	e.pending = append(e.pending, evs...)
	e.mu.Unlock()
}

// Publish emits every queued event in execution order and clears the queue.
// Call it once the executed state has been committed.
func (e *Executor) Publish() int {
	e.mu.Lock()
	evs := e.pending
	e.pending = nil
	e.mu.Unlock()
	if e.emitter != nil {
		for _, ev := range evs {
			e.emitter.Emit(ev)
		}
	}
	return len(evs)
}

// Discard drops queued events after the executed state was rolled back.
func (e *Executor) Discard() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.pending)
	e.pending = nil
	return n
}

// ExecuteBlock applies the block's transactions in order. A failing
// transaction is reverted and dropped; it is reported in the returned slice
// but does not reject the block, so one player's bad reveal cannot stall
// everyone else's rooms.
func (e *Executor) ExecuteBlock(block *core.Block) (applied []*core.Transaction, failed map[string]error) {
	defer metrics.BlockExecution.UpdateSince(time.Now())
	failed = make(map[string]error)
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			failed[tx.ID] = err
			continue
		}
		applied = append(applied, tx)
	}
	return applied, failed
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// Either every write the transaction makes is kept, or none is.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{State: e.state, Block: block, Tx: tx}
	if err := e.applyTx(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		metrics.TxFailed.Inc(1)
		log.WithFields(logrus.Fields{
			"tx":   tx.ID,
			"type": tx.Type,
			"kind": core.ErrorKind(err),
		}).Warnf("tx rejected: %v", err)
		e.queue(append(ctx.rejected, events.Event{
			Type:        events.EventTxFailed,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "error": err.Error(), "kind": core.ErrorKind(err)},
		})...)
		return err
	}

	metrics.TxExecuted.Inc(1)
	e.queue(append(ctx.events, events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	})...)
	return nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(ctx *Context) error {
	tx := ctx.Tx
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
