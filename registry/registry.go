// Package registry tracks royalty configuration for a name collection and
// settles direct token sales: it pulls the buyer's payment, routes the
// royalty cut to its receiver, pays the seller the remainder, and moves the
// token.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitnsorg/libbitns-go/access"
	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

const (
	// PermAdmin gates royalty configuration changes.
	PermAdmin = "registry-admin"

	// PermSettler gates settlement and sale recording.
	PermSettler = "registry-settler"

	// CreatorShareBps and TreasuryShareBps are the default shares for
	// splitters attached by SetupTokenRoyalty.
	CreatorShareBps  uint32 = 4_000
	TreasuryShareBps uint32 = 6_000
)

// RoyaltyPath records how a royalty was delivered during settlement.
type RoyaltyPath string

const (
	// RoyaltyNone means no royalty was owed.
	RoyaltyNone RoyaltyPath = "none"

	// RoyaltyDeposit means the royalty was pushed through the receiver's
	// structured token deposit.
	RoyaltyDeposit RoyaltyPath = "deposit"

	// RoyaltyTransfer means the royalty fell back to a plain transfer.
	RoyaltyTransfer RoyaltyPath = "transfer"
)

// TokenDepositor accepts structured token deposits pulled from an approved
// allowance. Revenue splitters implement it.
type TokenDepositor interface {
	DepositToken(from funds.Address, c funds.Currency, amount uint64) error
}

// ReceiverLookup resolves an address to its structured deposit interface, if
// the address has one.
type ReceiverLookup func(addr funds.Address) (TokenDepositor, bool)

// SplitterCreator creates a new revenue splitter and returns its address.
type SplitterCreator func(creator, treasury funds.Address, creatorBps, treasuryBps uint32) (funds.Address, error)

// Options assembles a Registry.
type Options struct {
	// Address is the registry's own payment address. Settlement funds pass
	// through it.
	Address funds.Address

	// Bank moves funds.
	Bank funds.Bank

	// Names is the token ledger being sold against.
	Names nft.Ledger

	// Store persists royalty configuration and sale records.
	Store Store

	// Admin receives the admin and settler permissions.
	Admin funds.Address

	// Default is the initial collection-wide royalty. Ignored when the store
	// already holds a configuration.
	Default RoyaltyInfo

	// Lookup resolves royalty receivers that accept structured deposits.
	// Optional; without it every royalty uses a plain transfer.
	Lookup ReceiverLookup

	// Splitters creates per-token splitters for SetupTokenRoyalty. Optional.
	Splitters SplitterCreator

	// Treasury is the treasury share recipient for splitters created through
	// SetupTokenRoyalty. Required when Splitters is set.
	Treasury funds.Address

	// CreatorShare and TreasuryShare are the splitter shares in basis points
	// used by SetupTokenRoyalty. When both are zero the standard
	// CreatorShareBps/TreasuryShareBps split applies; otherwise they must sum
	// to 10,000.
	CreatorShare  uint32
	TreasuryShare uint32
}

// Registry is the royalty configuration and direct settlement engine for one
// name collection.
type Registry struct {
	addr          funds.Address
	bank          funds.Bank
	names         nft.Ledger
	store         Store
	acl           *access.Table
	lookup        ReceiverLookup
	splitters     SplitterCreator
	treasury      funds.Address
	creatorShare  uint32
	treasuryShare uint32
	guard         funds.Guard

	mu        sync.RWMutex
	def       RoyaltyInfo
	overrides map[nft.TokenID]RoyaltyInfo
}

// New assembles a Registry, loading any royalty configuration already in the
// store. The admin is granted both the admin and settler permissions.
func New(opts Options) (*Registry, error) {
	if opts.Address.IsNull() || opts.Admin.IsNull() {
		return nil, funds.ErrNullAddress
	}
	if opts.Bank == nil || opts.Names == nil || opts.Store == nil {
		return nil, fmt.Errorf("registry: bank, names and store are required")
	}
	if opts.Default.Bps > funds.TotalBps {
		return nil, ErrBpsTooHigh
	}
	if opts.Splitters != nil && opts.Treasury.IsNull() {
		return nil, fmt.Errorf("registry: splitter factory requires a treasury: %w", funds.ErrNullAddress)
	}
	creatorShare, treasuryShare := opts.CreatorShare, opts.TreasuryShare
	if creatorShare == 0 && treasuryShare == 0 {
		creatorShare, treasuryShare = CreatorShareBps, TreasuryShareBps
	}
	if creatorShare+treasuryShare != funds.TotalBps {
		return nil, fmt.Errorf("%w: shares %d + %d", ErrBadShareSplit, creatorShare, treasuryShare)
	}

	acl := access.NewTable()
	acl.Grant(PermAdmin, opts.Admin)
	acl.Grant(PermSettler, opts.Admin)

	r := &Registry{
		addr:          opts.Address,
		bank:          opts.Bank,
		names:         opts.Names,
		store:         opts.Store,
		acl:           acl,
		lookup:        opts.Lookup,
		splitters:     opts.Splitters,
		treasury:      opts.Treasury,
		creatorShare:  creatorShare,
		treasuryShare: treasuryShare,
		def:           opts.Default,
		overrides:     make(map[nft.TokenID]RoyaltyInfo),
	}

	st, err := opts.Store.GetRoyaltyConfig()
	switch {
	case err == nil:
		r.def = st.Default
		for id, info := range st.Overrides {
			r.overrides[id] = info
		}
	case errors.Is(err, ErrConfigNotFound):
		if err := r.store.SaveRoyaltyConfig(r.snapshot()); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return r, nil
}

// Address returns the registry's payment address.
func (r *Registry) Address() funds.Address { return r.addr }

// GrantSettler grants the settler permission to an address, letting it settle
// and record sales. The caller must hold the admin permission.
func (r *Registry) GrantSettler(caller, settler funds.Address) error {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	r.acl.Grant(PermSettler, settler)
	return nil
}

// RevokeSettler removes the settler permission from an address.
func (r *Registry) RevokeSettler(caller, settler funds.Address) error {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	r.acl.Revoke(PermSettler, settler)
	return nil
}

// SettleTokenSale settles a token sale paid in a fungible currency. The
// buyer's payment is pulled from their allowance to the registry, the royalty
// cut is routed to its receiver, the seller gets the remainder, and the token
// moves to the buyer. The caller must hold the settler permission.
//
// Royalty delivery first attempts the receiver's structured deposit under a
// temporary exact allowance, then falls back to a plain transfer. If any
// transfer cannot be completed the whole sale rolls back: the buyer is
// refunded in full and the token stays with the seller.
func (r *Registry) SettleTokenSale(caller funds.Address, id nft.TokenID, c funds.Currency, price uint64, seller, buyer funds.Address) (*Sale, error) {
	if err := r.guard.Enter(); err != nil {
		return nil, err
	}
	defer r.guard.Exit()

	if err := r.acl.Require(PermSettler, caller); err != nil {
		return nil, err
	}
	if c == "" || c == funds.Native {
		return nil, funds.ErrInvalidCurrency
	}
	if price == 0 {
		return nil, ErrZeroPrice
	}
	if seller.IsNull() || buyer.IsNull() {
		return nil, funds.ErrNullAddress
	}
	if seller == buyer {
		return nil, ErrSelfPurchase
	}
	owner, err := r.names.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	if owner != seller {
		return nil, ErrSellerNotOwner
	}

	if err := r.bank.TransferFrom(c, buyer, r.addr, r.addr, price); err != nil {
		return nil, fmt.Errorf("registry: collect payment: %w", err)
	}

	receiver, royalty := r.ResolveRoyalty(id, price)
	remainder := price - royalty

	// Seller first, token second, royalty last: each step that can fail is
	// compensated by plain transfers only, never by pulling funds back out
	// of a royalty receiver.
	if remainder > 0 {
		if err := r.bank.Transfer(c, r.addr, seller, remainder); err != nil {
			_ = r.bank.Transfer(c, r.addr, buyer, price)
			return nil, fmt.Errorf("registry: pay seller: %w", err)
		}
	}

	if err := r.names.Transfer(seller, buyer, id); err != nil {
		_ = r.bank.Transfer(c, seller, r.addr, remainder)
		_ = r.bank.Transfer(c, r.addr, buyer, price)
		return nil, fmt.Errorf("registry: transfer token: %w", err)
	}

	path := RoyaltyNone
	if royalty > 0 {
		path, err = r.deliverRoyalty(c, receiver, royalty)
		if err != nil {
			_ = r.names.Transfer(buyer, seller, id)
			_ = r.bank.Transfer(c, seller, r.addr, remainder)
			_ = r.bank.Transfer(c, r.addr, buyer, price)
			return nil, fmt.Errorf("registry: deliver royalty: %w", err)
		}
	}

	sale := &Sale{
		ID:              uuid.NewString(),
		Token:           id,
		Currency:        c,
		Price:           price,
		Seller:          seller,
		Buyer:           buyer,
		RoyaltyReceiver: receiver,
		RoyaltyAmount:   royalty,
		Path:            path,
		Time:            time.Now().UTC(),
		Recorded:        true,
	}
	if err := r.store.AppendSale(sale); err != nil {
		sale.Recorded = false
	}
	return sale, nil
}

// RecordSale records a sale settled elsewhere, typically by a marketplace
// that handled the funds itself. Recording is best effort for callers: a
// store failure surfaces as an error but changes no state. The caller must
// hold the settler permission.
func (r *Registry) RecordSale(caller funds.Address, id nft.TokenID, price uint64, buyer funds.Address) error {
	if err := r.acl.Require(PermSettler, caller); err != nil {
		return err
	}
	if price == 0 {
		return ErrZeroPrice
	}
	if buyer.IsNull() {
		return funds.ErrNullAddress
	}
	return r.store.AppendSale(&Sale{
		ID:       uuid.NewString(),
		Token:    id,
		Price:    price,
		Buyer:    buyer,
		Path:     RoyaltyNone,
		Time:     time.Now().UTC(),
		Recorded: true,
	})
}

// SalesOf returns the recorded sales of a token, oldest first.
func (r *Registry) SalesOf(id nft.TokenID) ([]*Sale, error) {
	return r.store.SalesOf(id)
}

// deliverRoyalty routes a royalty cut to its receiver. Receivers that accept
// structured deposits get an exact temporary allowance which is revoked
// whether or not the deposit succeeds; anything else, including a failed
// deposit, falls back to a plain transfer.
func (r *Registry) deliverRoyalty(c funds.Currency, receiver funds.Address, amount uint64) (RoyaltyPath, error) {
	if r.lookup != nil {
		if dep, ok := r.lookup(receiver); ok {
			if err := r.bank.Approve(c, r.addr, receiver, amount); err == nil {
				depErr := dep.DepositToken(r.addr, c, amount)
				_ = r.bank.Approve(c, r.addr, receiver, 0)
				if depErr == nil {
					return RoyaltyDeposit, nil
				}
			}
		}
	}
	if err := r.bank.Transfer(c, r.addr, receiver, amount); err != nil {
		return RoyaltyNone, err
	}
	return RoyaltyTransfer, nil
}

func (r *Registry) snapshot() *RoyaltyState {
	st := &RoyaltyState{
		Default:   r.def,
		Overrides: make(map[nft.TokenID]RoyaltyInfo, len(r.overrides)),
	}
	for id, info := range r.overrides {
		st.Overrides[id] = info
	}
	return st
}

func (r *Registry) persistLocked() error {
	return r.store.SaveRoyaltyConfig(r.snapshot())
}
