package market

import (
	"fmt"
	"time"

	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

// ListToken lists a token for sale in native currency and takes it into
// escrow. The seller must own the token and must have approved the
// marketplace to transfer it. Returns the listing id.
func (m *Market) ListToken(seller funds.Address, collection string, id nft.TokenID, price uint64) (uint64, error) {
	return m.list(seller, collection, id, funds.Native, price)
}

// ListTokenForCurrency lists a token priced in a fungible currency.
func (m *Market) ListTokenForCurrency(seller funds.Address, collection string, id nft.TokenID, c funds.Currency, price uint64) (uint64, error) {
	if c == "" || c == funds.Native {
		return 0, funds.ErrInvalidCurrency
	}
	return m.list(seller, collection, id, c, price)
}

func (m *Market) list(seller funds.Address, collection string, id nft.TokenID, c funds.Currency, price uint64) (uint64, error) {
	if err := m.guard.Enter(); err != nil {
		return 0, err
	}
	defer m.guard.Exit()

	if seller.IsNull() {
		return 0, funds.ErrNullAddress
	}
	if price == 0 {
		return 0, ErrZeroPrice
	}
	col, ok := m.Collection(collection)
	if !ok {
		return 0, ErrUnknownCollection
	}

	owner, err := col.Ledger.OwnerOf(id)
	if err != nil {
		return 0, err
	}
	if owner != seller {
		return 0, nft.ErrNotOwner
	}
	if err := m.requireApproval(col.Ledger, seller, id); err != nil {
		return 0, err
	}

	listingID, err := m.store.NextListingID()
	if err != nil {
		return 0, err
	}

	// escrow before the listing goes live
	if err := col.Ledger.Transfer(seller, m.addr, id); err != nil {
		return 0, fmt.Errorf("market: escrow token: %w", err)
	}

	now := time.Now().UTC()
	lst := &Listing{
		ID:         listingID,
		Collection: collection,
		Token:      id,
		Seller:     seller,
		Currency:   c,
		Price:      price,
		Status:     StatusActive,
		Created:    now,
		Updated:    now,
	}
	if err := m.store.SaveListing(lst); err != nil {
		_ = col.Ledger.Transfer(m.addr, seller, id)
		return 0, err
	}
	return listingID, nil
}

// requireApproval checks the marketplace may move the token on the seller's
// behalf.
func (m *Market) requireApproval(ledger nft.Ledger, seller funds.Address, id nft.TokenID) error {
	approved, err := ledger.GetApproved(id)
	if err != nil {
		return err
	}
	if approved == m.addr {
		return nil
	}
	ok, err := ledger.IsApprovedForAll(seller, m.addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	return nil
}

// UpdateListing changes the price of an active listing. Only the seller may
// update it.
func (m *Market) UpdateListing(caller funds.Address, listingID, price uint64) error {
	if price == 0 {
		return ErrZeroPrice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lst, err := m.store.GetListing(listingID)
	if err != nil {
		return err
	}
	if lst.Seller != caller {
		return ErrNotSeller
	}
	if lst.Status != StatusActive {
		return ErrListingNotActive
	}
	lst.Price = price
	lst.Updated = time.Now().UTC()
	return m.store.SaveListing(lst)
}

// CancelListing closes an active listing and returns the token to the
// seller. Only the seller or an admin may cancel.
func (m *Market) CancelListing(caller funds.Address, listingID uint64) error {
	if err := m.guard.Enter(); err != nil {
		return err
	}
	defer m.guard.Exit()

	lst, err := m.store.GetListing(listingID)
	if err != nil {
		return err
	}
	if lst.Seller != caller && !m.acl.Has(PermAdmin, caller) {
		return ErrNotSeller
	}
	if lst.Status != StatusActive {
		return ErrListingNotActive
	}
	col, ok := m.Collection(lst.Collection)
	if !ok {
		return ErrUnknownCollection
	}
	custodian, err := col.Ledger.OwnerOf(lst.Token)
	if err != nil {
		return err
	}
	if custodian != m.addr {
		return fmt.Errorf("market: token not in escrow: %w", ErrListingNotActive)
	}

	lst.Status = StatusCanceled
	lst.Updated = time.Now().UTC()
	if err := m.store.SaveListing(lst); err != nil {
		return err
	}

	if err := col.Ledger.Transfer(m.addr, lst.Seller, lst.Token); err != nil {
		lst.Status = StatusActive
		_ = m.store.SaveListing(lst)
		return fmt.Errorf("market: release token: %w", err)
	}
	return nil
}

// GetListing returns a listing by id.
func (m *Market) GetListing(listingID uint64) (*Listing, error) {
	return m.store.GetListing(listingID)
}

// Listings returns all listings ordered by id, terminal ones included.
func (m *Market) Listings() ([]*Listing, error) {
	return m.store.Listings()
}
