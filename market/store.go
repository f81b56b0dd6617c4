package market

import (
	"sort"
	"sync"
	"time"

	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

// Status is the lifecycle state of a listing. Sold and canceled listings are
// terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusSold     Status = "sold"
	StatusCanceled Status = "canceled"
)

// RoyaltyPath records how a sale's royalty was delivered.
type RoyaltyPath string

const (
	// RoyaltyNone means no royalty was delivered.
	RoyaltyNone RoyaltyPath = "none"

	// RoyaltyDeposit means the royalty went through the receiver's
	// structured token deposit.
	RoyaltyDeposit RoyaltyPath = "deposit"

	// RoyaltyTransfer means the royalty was delivered by plain transfer.
	RoyaltyTransfer RoyaltyPath = "transfer"
)

// Listing is one token offered for sale. The marketplace holds the token in
// escrow while the listing is active.
type Listing struct {
	ID         uint64
	Collection string
	Token      nft.TokenID
	Seller     funds.Address
	Currency   funds.Currency
	Price      uint64
	Status     Status
	Created    time.Time
	Updated    time.Time
}

// Settlement is the durable record of one completed purchase.
type Settlement struct {
	ID              string
	Listing         uint64
	Collection      string
	Token           nft.TokenID
	Seller          funds.Address
	Buyer           funds.Address
	Currency        funds.Currency
	Price           uint64
	Fee             uint64
	RoyaltyReceiver funds.Address
	RoyaltyAmount   uint64
	SellerProceeds  uint64
	Path            RoyaltyPath
	Time            time.Time

	// AnalyticsRecorded is false when the collection's sale recorder
	// rejected the notification. The sale itself stands.
	AnalyticsRecorded bool

	// Recorded is false when settlement succeeded but this record could not
	// be persisted.
	Recorded bool
}

// Store persists listings, the fee pool and settlement history.
type Store interface {
	// NextListingID allocates a fresh monotonic listing id.
	NextListingID() (uint64, error)

	// SaveListing inserts or replaces a listing keyed by id.
	SaveListing(l *Listing) error

	// GetListing returns a listing, or ErrUnknownListing.
	GetListing(id uint64) (*Listing, error)

	// Listings returns all listings ordered by id.
	Listings() ([]*Listing, error)

	// SaveFeePool replaces the persisted fee pool.
	SaveFeePool(pool map[funds.Currency]uint64) error

	// FeePool returns the persisted fee pool, nil when never saved.
	FeePool() (map[funds.Currency]uint64, error)

	// AppendSettlement appends a settlement record.
	AppendSettlement(s *Settlement) error

	// Settlements returns all settlements, oldest first.
	Settlements() ([]*Settlement, error)
}

// MemStore is an in-memory Store for tests and ephemeral marketplaces.
type MemStore struct {
	mu          sync.RWMutex
	nextID      uint64
	listings    map[uint64]*Listing
	pool        map[funds.Currency]uint64
	settlements []*Settlement
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{listings: make(map[uint64]*Listing)}
}

// NextListingID allocates a fresh monotonic listing id.
func (m *MemStore) NextListingID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, nil
}

// SaveListing inserts or replaces a listing keyed by id.
func (m *MemStore) SaveListing(l *Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

// GetListing returns a listing.
func (m *MemStore) GetListing(id uint64) (*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, ErrUnknownListing
	}
	cp := *l
	return &cp, nil
}

// Listings returns all listings ordered by id.
func (m *MemStore) Listings() ([]*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Listing, 0, len(m.listings))
	for _, l := range m.listings {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveFeePool replaces the persisted fee pool.
func (m *MemStore) SaveFeePool(pool map[funds.Currency]uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[funds.Currency]uint64, len(pool))
	for c, amt := range pool {
		cp[c] = amt
	}
	m.pool = cp
	return nil
}

// FeePool returns the persisted fee pool.
func (m *MemStore) FeePool() (map[funds.Currency]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pool == nil {
		return nil, nil
	}
	cp := make(map[funds.Currency]uint64, len(m.pool))
	for c, amt := range m.pool {
		cp[c] = amt
	}
	return cp, nil
}

// AppendSettlement appends a settlement record.
func (m *MemStore) AppendSettlement(s *Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settlements = append(m.settlements, &cp)
	return nil
}

// Settlements returns all settlements, oldest first.
func (m *MemStore) Settlements() ([]*Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Settlement, 0, len(m.settlements))
	for _, s := range m.settlements {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}
