// Package market is the escrow marketplace: sellers list tokens from
// registered collections, the marketplace takes custody, and purchases settle
// the price across royalty receiver, marketplace fee pool and seller before
// the token is released to the buyer.
package market

import (
	"fmt"
	"sync"

	"github.com/bitnsorg/libbitns-go/access"
	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

const (
	// PermAdmin gates collection registration, fee changes and fee
	// withdrawal.
	PermAdmin = "market-admin"

	// MaxFeeBps is the ceiling on the marketplace fee, 10%.
	MaxFeeBps uint32 = 1_000
)

// RoyaltyResolver reports the royalty receiver and amount for a token sale.
type RoyaltyResolver interface {
	ResolveRoyalty(id nft.TokenID, salePrice uint64) (funds.Address, uint64)
}

// SaleRecorder is notified of sales the marketplace settled itself, for
// collections that keep their own sale history.
type SaleRecorder interface {
	RecordSale(caller funds.Address, id nft.TokenID, price uint64, buyer funds.Address) error
}

// TokenDepositor accepts structured token deposits pulled from an approved
// allowance.
type TokenDepositor interface {
	DepositToken(from funds.Address, c funds.Currency, amount uint64) error
}

// ReceiverLookup resolves an address to its structured deposit interface, if
// the address has one.
type ReceiverLookup func(addr funds.Address) (TokenDepositor, bool)

// Collection wires one token collection into the marketplace. Royalties and
// Recorder are optional.
type Collection struct {
	Ledger    nft.Ledger
	Royalties RoyaltyResolver
	Recorder  SaleRecorder
}

// Options assembles a Market.
type Options struct {
	// Address is the marketplace's own address. Escrowed tokens and
	// in-flight payments sit under it.
	Address funds.Address

	// Bank moves funds.
	Bank funds.Bank

	// Store persists listings, the fee pool and settlement history.
	Store Store

	// Admin receives the admin permission.
	Admin funds.Address

	// FeeTreasury receives withdrawn fees when no explicit recipient is
	// given.
	FeeTreasury funds.Address

	// FeeBps is the marketplace cut per sale, at most MaxFeeBps.
	FeeBps uint32

	// Lookup resolves royalty receivers that accept structured deposits.
	// Optional; without it every token royalty uses a plain transfer.
	Lookup ReceiverLookup
}

// Market is the escrow and settlement engine.
type Market struct {
	addr        funds.Address
	bank        funds.Bank
	store       Store
	acl         *access.Table
	lookup      ReceiverLookup
	feeTreasury funds.Address
	guard       funds.Guard

	mu          sync.RWMutex
	feeBps      uint32
	fees        map[funds.Currency]uint64
	collections map[string]Collection
}

// New assembles a Market and loads the fee pool from the store. Listings
// already in the store remain addressable by id; collections must be
// registered again, they hold runtime wiring.
func New(opts Options) (*Market, error) {
	if opts.Address.IsNull() || opts.Admin.IsNull() || opts.FeeTreasury.IsNull() {
		return nil, funds.ErrNullAddress
	}
	if opts.Bank == nil || opts.Store == nil {
		return nil, fmt.Errorf("market: bank and store are required")
	}
	if opts.FeeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}

	acl := access.NewTable()
	acl.Grant(PermAdmin, opts.Admin)

	pool, err := opts.Store.FeePool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = make(map[funds.Currency]uint64)
	}

	return &Market{
		addr:        opts.Address,
		bank:        opts.Bank,
		store:       opts.Store,
		acl:         acl,
		lookup:      opts.Lookup,
		feeTreasury: opts.FeeTreasury,
		feeBps:      opts.FeeBps,
		fees:        pool,
		collections: make(map[string]Collection),
	}, nil
}

// Address returns the marketplace's own address.
func (m *Market) Address() funds.Address { return m.addr }

// FeeBps returns the current marketplace fee.
func (m *Market) FeeBps() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feeBps
}

// SetFeeBps changes the marketplace fee for future sales. The fee is capped
// at MaxFeeBps. The caller must hold the admin permission.
func (m *Market) SetFeeBps(caller funds.Address, bps uint32) error {
	if err := m.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	if bps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	m.mu.Lock()
	m.feeBps = bps
	m.mu.Unlock()
	return nil
}

// RegisterCollection makes a collection's tokens listable. The caller must
// hold the admin permission.
func (m *Market) RegisterCollection(caller funds.Address, id string, col Collection) error {
	if err := m.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	if id == "" || col.Ledger == nil {
		return fmt.Errorf("market: collection id and ledger are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[id]; ok {
		return ErrCollectionExists
	}
	m.collections[id] = col
	return nil
}

// Collection returns a registered collection's wiring.
func (m *Market) Collection(id string) (Collection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[id]
	return col, ok
}

// FeesAccrued returns the undistributed fees held for a currency.
func (m *Market) FeesAccrued(c funds.Currency) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fees[c]
}

// WithdrawFees sends the accrued native fee pool to the fee treasury and
// returns the amount moved. The caller must hold the admin permission.
func (m *Market) WithdrawFees(caller funds.Address) (uint64, error) {
	return m.withdrawFees(caller, funds.Native)
}

// WithdrawTokenFees sends the accrued fee pool for a fungible currency to the
// fee treasury and returns the amount moved. The caller must hold the admin
// permission.
func (m *Market) WithdrawTokenFees(caller funds.Address, c funds.Currency) (uint64, error) {
	if c == "" || c == funds.Native {
		return 0, funds.ErrInvalidCurrency
	}
	return m.withdrawFees(caller, c)
}

// withdrawFees zeroes the pool before moving funds and restores it if the
// transfer fails.
func (m *Market) withdrawFees(caller funds.Address, c funds.Currency) (uint64, error) {
	if err := m.guard.Enter(); err != nil {
		return 0, err
	}
	defer m.guard.Exit()

	if err := m.acl.Require(PermAdmin, caller); err != nil {
		return 0, err
	}

	m.mu.Lock()
	amount := m.fees[c]
	if amount == 0 {
		m.mu.Unlock()
		return 0, ErrNoFees
	}
	delete(m.fees, c)
	if err := m.persistFeesLocked(); err != nil {
		m.fees[c] = amount
		m.mu.Unlock()
		return 0, err
	}
	m.mu.Unlock()

	if err := m.bank.Transfer(c, m.addr, m.feeTreasury, amount); err != nil {
		m.mu.Lock()
		m.fees[c] += amount
		_ = m.persistFeesLocked()
		m.mu.Unlock()
		return 0, fmt.Errorf("market: withdraw fees: %w", err)
	}
	return amount, nil
}

func (m *Market) persistFeesLocked() error {
	pool := make(map[funds.Currency]uint64, len(m.fees))
	for c, amt := range m.fees {
		pool[c] = amt
	}
	return m.store.SaveFeePool(pool)
}
