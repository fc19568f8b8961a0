// Package events is a synchronous pub/sub bus for ledger state changes.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "events")

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit    EventType = "block_commit"
	EventTxExecuted     EventType = "tx_executed"
	EventTxFailed       EventType = "tx_failed"
	EventTokenTransfer  EventType = "token_transfer"
	EventMintCreated    EventType = "mint_created"
	EventTokensMinted   EventType = "tokens_minted"
	EventConfigUpdated  EventType = "config_updated"
	EventRoomCreated    EventType = "room_created"
	EventRoomJoined     EventType = "room_joined"
	EventRoomFinished   EventType = "room_finished"
	EventRevealRejected EventType = "room_reveal_rejected"
)

// RoomEvents lists the event types describing room transitions.
var RoomEvents = []EventType{EventRoomCreated, EventRoomJoined, EventRoomFinished, EventRevealRejected}

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

type subscription struct {
	id int
	h  Handler
}

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscription
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]subscription)}
}

// Subscribe registers h to be called whenever typ is emitted. The returned
// function removes the subscription.
func (e *Emitter) Subscribe(typ EventType, h Handler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.handlers[typ] = append(e.handlers[typ], subscription{id: id, h: h})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.handlers[typ]
		for i, s := range subs {
			if s.id == id {
				e.handlers[typ] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// A panicking handler is logged and skipped so it cannot halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("event", ev.Type).Errorf("handler panicked: %v", r)
				}
			}()
			s.h(ev)
		}()
	}
}
