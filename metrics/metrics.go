// Package metrics tracks room lifecycle and custody volume counters.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry holds every counter the node exposes over RPC.
var Registry = gometrics.NewRegistry()

var (
	TxExecuted      = gometrics.NewRegisteredCounter("tx.executed", Registry)
	TxFailed        = gometrics.NewRegisteredCounter("tx.failed", Registry)
	BlocksProduced  = gometrics.NewRegisteredCounter("blocks.produced", Registry)
	RoomsCreated    = gometrics.NewRegisteredCounter("rooms.created", Registry)
	RoomsJoined     = gometrics.NewRegisteredCounter("rooms.joined", Registry)
	RoomsFinished   = gometrics.NewRegisteredCounter("rooms.finished", Registry)
	RevealsRejected = gometrics.NewRegisteredCounter("rooms.reveals_rejected", Registry)
	EscrowDeposited = gometrics.NewRegisteredCounter("escrow.deposited", Registry)
	EscrowReleased  = gometrics.NewRegisteredCounter("escrow.released", Registry)
	BlockExecution  = gometrics.NewRegisteredTimer("blocks.execution", Registry)
)

// Snapshot returns the current value of every registered metric, keyed by name.
func Snapshot() map[string]any {
	out := make(map[string]any)
	Registry.Each(func(name string, m any) {
		switch v := m.(type) {
		case gometrics.Counter:
			out[name] = v.Count()
		case gometrics.Timer:
			s := v.Snapshot()
			out[name] = map[string]any{"count": s.Count(), "mean_ns": s.Mean(), "max_ns": s.Max()}
		}
	})
	return out
}
