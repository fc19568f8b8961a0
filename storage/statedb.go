package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tolelom/pazaak/core"
	"github.com/tolelom/pazaak/crypto"
)

// registerPrefix records a state-key prefix so ComputeRoot always covers it.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

var statePrefixes []string

var (
	prefixAccount = registerPrefix("acct:")
	prefixMint    = registerPrefix("mint:")
	prefixToken   = registerPrefix("tok:")
	prefixConfig  = registerPrefix("pzcfg:")
	prefixRoom    = registerPrefix("room:")
)

// keyGameConfig is the singleton config record.
var keyGameConfig = prefixConfig + core.ConfigAddress()

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
// The buffer is guarded so RPC readers may run alongside block execution.
type StateDB struct {
	db DB

	mu        sync.RWMutex
	dirty     map[string][]byte
	snapshots []map[string][]byte
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{db: db, dirty: make(map[string][]byte)}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	v, ok := s.dirty[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[key] = val
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Tokens ----

func (s *StateDB) GetMint(id string) (*core.Mint, error) {
	var m core.Mint
	if err := s.getJSON(prefixMint+id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *StateDB) SetMint(m *core.Mint) error {
	return s.setJSON(prefixMint+m.ID, m)
}

func (s *StateDB) GetTokenAccount(address string) (*core.TokenAccount, error) {
	var ta core.TokenAccount
	if err := s.getJSON(prefixToken+address, &ta); err != nil {
		return nil, err
	}
	return &ta, nil
}

func (s *StateDB) SetTokenAccount(ta *core.TokenAccount) error {
	return s.setJSON(prefixToken+ta.Address, ta)
}

// ---- Pazaak ----

func (s *StateDB) GetGameConfig() (*core.GameConfig, error) {
	var cfg core.GameConfig
	if err := s.getJSON(keyGameConfig, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *StateDB) SetGameConfig(cfg *core.GameConfig) error {
	return s.setJSON(keyGameConfig, cfg)
}

func roomKey(id uint64) string {
	return prefixRoom + strconv.FormatUint(id, 10)
}

func (s *StateDB) GetRoom(id uint64) (*core.GameRoom, error) {
	var r core.GameRoom
	if err := s.getJSON(roomKey(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *StateDB) SetRoom(r *core.GameRoom) error {
	return s.setJSON(roomKey(r.ID), r)
}

// ---- Snapshot / Rollback / Commit ----

func copyBuffer(dirty map[string][]byte) map[string][]byte {
	cp := make(map[string][]byte, len(dirty))
	for k, v := range dirty {
		cp[k] = append([]byte(nil), v...)
	}
	return cp
}

// Snapshot saves the current write buffer and returns a snapshot ID.
// Snapshots nest: reverting to an ID discards it and every later one.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, copyBuffer(s.dirty))
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	s.dirty = copyBuffer(s.snapshots[id])
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state:
// persisted entries under every registered prefix, overlaid with the write
// buffer, sorted by key and length-prefix encoded. It does not flush.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			merged[string(it.Key())] = append([]byte(nil), it.Value()...)
		}
		it.Release()
	}

	s.mu.RLock()
	for k, v := range s.dirty {
		merged[k] = v
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// ErrReadOnly is returned by every write through a committed view.
var ErrReadOnly = errors.New("state: committed view is read-only")

// Committed returns a read-only view of the last committed state. Reads go
// straight to the DB and never see the write buffer of a block in flight,
// so a reader observes whole blocks or nothing.
func (s *StateDB) Committed() core.State {
	return committedView{&StateDB{db: s.db, dirty: make(map[string][]byte)}}
}

type committedView struct {
	*StateDB
}

func (committedView) SetAccount(*core.Account) error           { return ErrReadOnly }
func (committedView) SetMint(*core.Mint) error                 { return ErrReadOnly }
func (committedView) SetTokenAccount(*core.TokenAccount) error { return ErrReadOnly }
func (committedView) SetGameConfig(*core.GameConfig) error     { return ErrReadOnly }
func (committedView) SetRoom(*core.GameRoom) error             { return ErrReadOnly }
func (committedView) Snapshot() (int, error)                   { return 0, ErrReadOnly }
func (committedView) RevertToSnapshot(int) error               { return ErrReadOnly }
func (committedView) Commit() error                            { return ErrReadOnly }

// Commit atomically flushes the write buffer to the underlying DB via a
// batch and then clears it and all snapshots.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}
