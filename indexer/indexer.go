// Package indexer maintains secondary indexes over executed room
// transitions so clients can look up a player's rooms and a finished room's
// reveal without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/events"
	"github.com/tolelom/pazaak/storage"
)

var log = logrus.WithField("module", "indexer")

const (
	prefixPlayerRooms = "idx:player:room:"
	prefixRoomReveal  = "idx:room:reveal:"
	prefixTxResult    = "idx:tx:"
)

// TxResult is the outcome of an executed transaction. Kind names the failure
// kind of a rejected room or config operation.
type TxResult struct {
	TxID        string `json:"tx_id"`
	Type        string `json:"type"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	Kind        string `json:"kind,omitempty"`
	BlockHeight int64  `json:"block_height"`
}

// Reveal records the public inputs of a finished room's outcome.
type Reveal struct {
	RoomID           uint64 `json:"room_id"`
	RevealedPreimage string `json:"revealed_preimage"` // hex
	RevealedSeed     uint32 `json:"revealed_seed"`
	FairnessSeed     uint32 `json:"fairness_seed"`
	Winner           string `json:"winner"`
	TxID             string `json:"tx_id"`
	BlockHeight      int64  `json:"block_height"`
}

// Indexer subscribes to room events and updates secondary lookup tables.
type Indexer struct {
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to room events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventRoomCreated, idx.onRoomCreated)
	emitter.Subscribe(events.EventRoomJoined, idx.onRoomJoined)
	emitter.Subscribe(events.EventRoomFinished, idx.onRoomFinished)
	emitter.Subscribe(events.EventTxExecuted, idx.onTxResult)
	emitter.Subscribe(events.EventTxFailed, idx.onTxResult)
	return idx
}

// GetRoomsByPlayer returns the ids of every room the player created or joined.
func (idx *Indexer) GetRoomsByPlayer(player string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(prefixPlayerRooms + player))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

// GetReveal returns the reveal recorded when the room finished.
func (idx *Indexer) GetReveal(roomID uint64) (*Reveal, error) {
	data, err := idx.db.Get([]byte(prefixRoomReveal + strconv.FormatUint(roomID, 10)))
	if err != nil {
		return nil, err
	}
	var r Reveal
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return &r, nil
}

// GetTxResult returns the recorded outcome of an executed transaction.
func (idx *Indexer) GetTxResult(txID string) (*TxResult, error) {
	data, err := idx.db.Get([]byte(prefixTxResult + txID))
	if err != nil {
		return nil, err
	}
	var r TxResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return &r, nil
}

// ---- event handlers ----

func (idx *Indexer) onTxResult(ev events.Event) {
	r := TxResult{TxID: ev.TxID, OK: ev.Type == events.EventTxExecuted, BlockHeight: ev.BlockHeight}
	r.Type, _ = ev.Data["type"].(string)
	r.Error, _ = ev.Data["error"].(string)
	r.Kind, _ = ev.Data["kind"].(string)
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := idx.db.Set([]byte(prefixTxResult+ev.TxID), data); err != nil {
		log.WithField("tx", ev.TxID).Errorf("store tx result: %v", err)
	}
}

func (idx *Indexer) onRoomCreated(ev events.Event) {
	roomID, ok := ev.Data["room_id"].(uint64)
	player, _ := ev.Data["player1"].(string)
	if !ok || player == "" {
		return
	}
	idx.addRoom(player, roomID)
}

func (idx *Indexer) onRoomJoined(ev events.Event) {
	roomID, ok := ev.Data["room_id"].(uint64)
	player, _ := ev.Data["player2"].(string)
	if !ok || player == "" {
		return
	}
	idx.addRoom(player, roomID)
}

func (idx *Indexer) onRoomFinished(ev events.Event) {
	roomID, ok := ev.Data["room_id"].(uint64)
	if !ok {
		return
	}
	r := Reveal{RoomID: roomID, TxID: ev.TxID, BlockHeight: ev.BlockHeight}
	r.RevealedPreimage, _ = ev.Data["revealed_preimage"].(string)
	r.RevealedSeed, _ = ev.Data["seed"].(uint32)
	r.FairnessSeed, _ = ev.Data["fairness_seed"].(uint32)
	r.Winner, _ = ev.Data["winner"].(string)
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := idx.db.Set([]byte(prefixRoomReveal+strconv.FormatUint(roomID, 10)), data); err != nil {
		log.WithField("room_id", roomID).Errorf("store reveal: %v", err)
	}
}

func (idx *Indexer) addRoom(player string, roomID uint64) {
	ids, err := idx.GetRoomsByPlayer(player)
	if err != nil {
		log.WithField("player", player).Errorf("load room index: %v", err)
		return
	}
	for _, id := range ids {
		if id == roomID {
			return
		}
	}
	data, err := json.Marshal(append(ids, roomID))
	if err != nil {
		return
	}
	if err := idx.db.Set([]byte(prefixPlayerRooms+player), data); err != nil {
		log.WithField("player", player).Errorf("store room index: %v", err)
	}
}
