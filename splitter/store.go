package splitter

import (
	"sort"
	"sync"
	"time"

	"github.com/bitnsorg/libbitns-go/funds"
)

// Record kinds persisted by the factory and its instances.
const (
	RecordCreated     = "created"
	RecordInitialized = "initialized"
)

// State is the persisted snapshot of one splitter instance.
type State struct {
	Handle      uint64
	Address     funds.Address
	Initialized bool
	Creator     funds.Address
	Treasury    funds.Address
	CreatorBps  uint32
	TreasuryBps uint32
	Native      map[funds.Address]uint64
	Tokens      map[funds.Currency]map[funds.Address]uint64
	Tracked     []funds.Currency
}

// Record is an append-only lifecycle entry (instance created, initialized).
type Record struct {
	Seq         uint64 // store-assigned
	Handle      uint64
	Kind        string
	Creator     funds.Address
	Treasury    funds.Address
	CreatorBps  uint32
	TreasuryBps uint32
	Time        time.Time
}

// Store persists splitter instances and their lifecycle records.
type Store interface {
	// SaveState writes an instance snapshot, replacing any previous one.
	SaveState(st *State) error

	// GetState retrieves an instance snapshot by handle.
	GetState(handle uint64) (*State, error)

	// States returns all snapshots ordered by handle.
	States() ([]*State, error)

	// AppendRecord appends a lifecycle record, assigning Seq and Time if unset.
	AppendRecord(rec *Record) error

	// Records returns all lifecycle records in append order.
	Records() ([]*Record, error)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.Mutex
	states  map[uint64]*State
	records []*Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{states: make(map[uint64]*State)}
}

// SaveState writes an instance snapshot.
func (m *MemStore) SaveState(st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Handle] = st
	return nil
}

// GetState retrieves an instance snapshot by handle.
func (m *MemStore) GetState(handle uint64) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[handle]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st, nil
}

// States returns all snapshots ordered by handle.
func (m *MemStore) States() ([]*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

// AppendRecord appends a lifecycle record.
func (m *MemStore) AppendRecord(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Seq = uint64(len(m.records) + 1)
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	m.records = append(m.records, rec)
	return nil
}

// Records returns all lifecycle records in append order.
func (m *MemStore) Records() ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.records))
	copy(out, m.records)
	return out, nil
}
