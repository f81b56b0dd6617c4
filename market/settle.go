package market

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitnsorg/libbitns-go/funds"
)

// Buy purchases a native-priced listing. The payment must match the price
// exactly. The listing is marked sold before any funds leave the
// marketplace; the price is then split across the marketplace fee pool, the
// collection's royalty receiver and the seller, and the token is released to
// the buyer.
func (m *Market) Buy(buyer funds.Address, listingID, payment uint64) (*Settlement, error) {
	return m.settle(buyer, listingID, funds.Native, payment)
}

// BuyWithToken purchases a listing priced in a fungible currency. The
// payment is pulled from the buyer's allowance to the marketplace and must
// match the price exactly.
func (m *Market) BuyWithToken(buyer funds.Address, listingID uint64, c funds.Currency, payment uint64) (*Settlement, error) {
	if c == "" || c == funds.Native {
		return nil, funds.ErrInvalidCurrency
	}
	return m.settle(buyer, listingID, c, payment)
}

func (m *Market) settle(buyer funds.Address, listingID uint64, c funds.Currency, payment uint64) (*Settlement, error) {
	if err := m.guard.Enter(); err != nil {
		return nil, err
	}
	defer m.guard.Exit()

	if buyer.IsNull() {
		return nil, funds.ErrNullAddress
	}

	lst, err := m.store.GetListing(listingID)
	if err != nil {
		return nil, err
	}
	if lst.Status != StatusActive {
		return nil, ErrListingNotActive
	}
	if lst.Currency != c {
		return nil, ErrWrongCurrency
	}
	if payment != lst.Price {
		return nil, ErrWrongPayment
	}
	if buyer == lst.Seller {
		return nil, ErrSelfPurchase
	}
	col, ok := m.Collection(lst.Collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	custodian, err := col.Ledger.OwnerOf(lst.Token)
	if err != nil {
		return nil, err
	}
	if custodian != m.addr {
		return nil, fmt.Errorf("market: token not in escrow: %w", ErrListingNotActive)
	}

	if err := m.collect(c, buyer, payment); err != nil {
		return nil, fmt.Errorf("market: collect payment: %w", err)
	}

	// terminal state first, then distribution
	lst.Status = StatusSold
	lst.Updated = time.Now().UTC()
	if err := m.store.SaveListing(lst); err != nil {
		_ = m.bank.Transfer(c, m.addr, buyer, payment)
		return nil, err
	}

	royaltyRecv, royaltyAmt := funds.NullAddress, uint64(0)
	if col.Royalties != nil {
		royaltyRecv, royaltyAmt = col.Royalties.ResolveRoyalty(lst.Token, lst.Price)
	}
	fee := funds.Cut(lst.Price, m.FeeBps())
	if royaltyAmt > lst.Price-fee {
		royaltyAmt = lst.Price - fee
	}
	sellerAmt := lst.Price - royaltyAmt - fee

	// accrue the fee while the unwind is still cheap
	if fee > 0 {
		if err := m.accrueFee(c, fee); err != nil {
			m.unwind(lst, c, buyer, payment)
			return nil, err
		}
	}

	if sellerAmt > 0 {
		if err := m.bank.Transfer(c, m.addr, lst.Seller, sellerAmt); err != nil {
			if fee > 0 {
				m.revokeFee(c, fee)
			}
			m.unwind(lst, c, buyer, payment)
			return nil, fmt.Errorf("market: pay seller: %w", err)
		}
	}

	if err := col.Ledger.Transfer(m.addr, buyer, lst.Token); err != nil {
		_ = m.bank.Transfer(c, lst.Seller, m.addr, sellerAmt)
		if fee > 0 {
			m.revokeFee(c, fee)
		}
		m.unwind(lst, c, buyer, payment)
		return nil, fmt.Errorf("market: release token: %w", err)
	}

	// the royalty is on the critical money path: a receiver that cannot take
	// funds after the structured-deposit fallback fails the whole purchase,
	// pulling the token back into escrow
	path := RoyaltyNone
	if royaltyAmt > 0 {
		path, err = m.deliverRoyalty(c, royaltyRecv, royaltyAmt)
		if err != nil {
			_ = col.Ledger.Transfer(buyer, m.addr, lst.Token)
			_ = m.bank.Transfer(c, lst.Seller, m.addr, sellerAmt)
			if fee > 0 {
				m.revokeFee(c, fee)
			}
			m.unwind(lst, c, buyer, payment)
			return nil, fmt.Errorf("market: pay royalty: %w", err)
		}
	}

	st := &Settlement{
		ID:              uuid.NewString(),
		Listing:         lst.ID,
		Collection:      lst.Collection,
		Token:           lst.Token,
		Seller:          lst.Seller,
		Buyer:           buyer,
		Currency:        c,
		Price:           lst.Price,
		Fee:             fee,
		RoyaltyReceiver: royaltyRecv,
		RoyaltyAmount:   royaltyAmt,
		SellerProceeds:  sellerAmt,
		Path:            path,
		Time:            time.Now().UTC(),
		Recorded:        true,
	}
	if col.Recorder != nil {
		st.AnalyticsRecorded = col.Recorder.RecordSale(m.addr, lst.Token, lst.Price, buyer) == nil
	}
	if err := m.store.AppendSettlement(st); err != nil {
		st.Recorded = false
	}
	return st, nil
}

// collect pulls the buyer's payment into marketplace custody. Native
// payments move directly, token payments come from the buyer's allowance.
func (m *Market) collect(c funds.Currency, buyer funds.Address, amount uint64) error {
	if c == funds.Native {
		return m.bank.Transfer(c, buyer, m.addr, amount)
	}
	return m.bank.TransferFrom(c, buyer, m.addr, m.addr, amount)
}

// unwind reactivates a sold listing and refunds the buyer after a
// distribution failure.
func (m *Market) unwind(lst *Listing, c funds.Currency, buyer funds.Address, payment uint64) {
	lst.Status = StatusActive
	lst.Updated = time.Now().UTC()
	_ = m.store.SaveListing(lst)
	_ = m.bank.Transfer(c, m.addr, buyer, payment)
}

func (m *Market) accrueFee(c funds.Currency, fee uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees[c] += fee
	if err := m.persistFeesLocked(); err != nil {
		m.fees[c] -= fee
		return err
	}
	return nil
}

func (m *Market) revokeFee(c funds.Currency, fee uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees[c] -= fee
	_ = m.persistFeesLocked()
}

// deliverRoyalty routes the royalty cut to its receiver. Fungible royalties
// first attempt the receiver's structured deposit under an exact temporary
// allowance which is revoked whether or not the deposit succeeds; everything
// else is a plain transfer, which for native funds still triggers the
// receiver's deposit hook.
func (m *Market) deliverRoyalty(c funds.Currency, receiver funds.Address, amount uint64) (RoyaltyPath, error) {
	if c != funds.Native && m.lookup != nil {
		if dep, ok := m.lookup(receiver); ok {
			if err := m.bank.Approve(c, m.addr, receiver, amount); err == nil {
				depErr := dep.DepositToken(m.addr, c, amount)
				_ = m.bank.Approve(c, m.addr, receiver, 0)
				if depErr == nil {
					return RoyaltyDeposit, nil
				}
			}
		}
	}
	if err := m.bank.Transfer(c, m.addr, receiver, amount); err != nil {
		return RoyaltyNone, err
	}
	return RoyaltyTransfer, nil
}

// SettlementsOf returns settlements, optionally filtered by listing id (0
// matches all), oldest first.
func (m *Market) SettlementsOf(listingID uint64) ([]*Settlement, error) {
	all, err := m.store.Settlements()
	if err != nil {
		return nil, err
	}
	if listingID == 0 {
		return all, nil
	}
	var out []*Settlement
	for _, s := range all {
		if s.Listing == listingID {
			out = append(out, s)
		}
	}
	return out, nil
}
