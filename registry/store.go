package registry

import (
	"sync"
	"time"

	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

// Sale is one recorded token sale.
type Sale struct {
	ID              string
	Token           nft.TokenID
	Currency        funds.Currency
	Price           uint64
	Seller          funds.Address
	Buyer           funds.Address
	RoyaltyReceiver funds.Address
	RoyaltyAmount   uint64
	Path            RoyaltyPath
	Time            time.Time

	// Recorded is false when settlement succeeded but the sale record could
	// not be persisted.
	Recorded bool
}

// Store persists royalty configuration and the sale history.
type Store interface {
	// SaveRoyaltyConfig replaces the stored royalty configuration.
	SaveRoyaltyConfig(st *RoyaltyState) error

	// GetRoyaltyConfig returns the stored royalty configuration, or
	// ErrConfigNotFound if none has been saved.
	GetRoyaltyConfig() (*RoyaltyState, error)

	// AppendSale appends a sale record.
	AppendSale(s *Sale) error

	// SalesOf returns the sales of one token, oldest first.
	SalesOf(id nft.TokenID) ([]*Sale, error)

	// Sales returns all sales, oldest first.
	Sales() ([]*Sale, error)
}

// MemStore is an in-memory Store for tests and ephemeral registries.
type MemStore struct {
	mu     sync.RWMutex
	config *RoyaltyState
	sales  []*Sale
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// SaveRoyaltyConfig replaces the stored royalty configuration.
func (m *MemStore) SaveRoyaltyConfig(st *RoyaltyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = copyConfig(st)
	return nil
}

// GetRoyaltyConfig returns the stored royalty configuration.
func (m *MemStore) GetRoyaltyConfig() (*RoyaltyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil, ErrConfigNotFound
	}
	return copyConfig(m.config), nil
}

// AppendSale appends a sale record.
func (m *MemStore) AppendSale(s *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sales = append(m.sales, &cp)
	return nil
}

// SalesOf returns the sales of one token, oldest first.
func (m *MemStore) SalesOf(id nft.TokenID) ([]*Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Sale
	for _, s := range m.sales {
		if s.Token == id {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Sales returns all sales, oldest first.
func (m *MemStore) Sales() ([]*Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Sale, 0, len(m.sales))
	for _, s := range m.sales {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func copyConfig(st *RoyaltyState) *RoyaltyState {
	cp := &RoyaltyState{
		Default:   st.Default,
		Overrides: make(map[nft.TokenID]RoyaltyInfo, len(st.Overrides)),
	}
	for id, info := range st.Overrides {
		cp.Overrides[id] = info
	}
	return cp
}
