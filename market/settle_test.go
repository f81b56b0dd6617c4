package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
	"github.com/bitnsorg/libbitns-go/splitter"
)

const (
	creator  = funds.Address("creator-addr")
	treasury = funds.Address("treasury-addr")

	price = uint64(100_000_000)
)

var testSeed = []byte("market-settlement-test-seed-0001")

// newRoyaltySplitter creates a live splitter on the bank paying 40% to the
// creator and 60% to the treasury.
func newRoyaltySplitter(t *testing.T, bank *funds.MemBank) (*splitter.Factory, *splitter.Splitter) {
	t.Helper()
	fac, err := splitter.NewFactory(bank, splitter.NewMemStore(), testSeed, admin)
	require.NoError(t, err)
	sp, err := fac.CreateSplitter(creator, treasury, 4_000, 6_000)
	require.NoError(t, err)
	return fac, sp
}

// setRoyalties swaps the registered collection's royalty wiring in place.
func (f *fixture) setRoyalties(r RoyaltyResolver) {
	f.mkt.mu.Lock()
	col := f.mkt.collections[colID]
	col.Royalties = r
	f.mkt.collections[colID] = col
	f.mkt.mu.Unlock()
}

func TestBuy_Settlement(t *testing.T) {
	rec := &countingRecorder{}
	f := newFixture(t, Collection{Recorder: rec})
	_, sp := newRoyaltySplitter(t, f.bank)
	f.setRoyalties(fixedRoyalty{recv: sp.Address(), bps: 500})

	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)
	st, err := f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)

	assert.Equal(t, uint64(92_500_000), f.balance(t, funds.Native, seller))
	assert.Equal(t, uint64(2_500_000), f.mkt.FeesAccrued(funds.Native))
	assert.Equal(t, uint64(2_000_000), sp.NativeBalanceOf(creator))
	assert.Equal(t, uint64(3_000_000), sp.NativeBalanceOf(treasury))
	assert.Equal(t, buyer, f.owner(t, nameID))

	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, lst.Status)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, uint64(5_000_000), st.RoyaltyAmount)
	assert.Equal(t, uint64(2_500_000), st.Fee)
	assert.Equal(t, uint64(92_500_000), st.SellerProceeds)
	assert.Equal(t, RoyaltyTransfer, st.Path)
	assert.True(t, st.AnalyticsRecorded)
	assert.True(t, st.Recorded)
	assert.Equal(t, 1, rec.calls)
}

func TestBuy_Validation(t *testing.T) {
	f := newFixture(t, Collection{})
	f.bank.Credit(funds.Native, buyer, price)
	f.bank.Credit(funds.Native, seller, price)
	id := f.listNative(t, price)

	_, err := f.mkt.Buy(buyer, 404, price)
	assert.ErrorIs(t, err, ErrUnknownListing)
	_, err = f.mkt.Buy(funds.NullAddress, id, price)
	assert.ErrorIs(t, err, funds.ErrNullAddress)
	_, err = f.mkt.Buy(buyer, id, price-1)
	assert.ErrorIs(t, err, ErrWrongPayment)
	_, err = f.mkt.Buy(buyer, id, price+1)
	assert.ErrorIs(t, err, ErrWrongPayment)
	_, err = f.mkt.Buy(seller, id, price)
	assert.ErrorIs(t, err, ErrSelfPurchase)

	// a rejected purchase leaves everything in place
	assert.Equal(t, price, f.balance(t, funds.Native, buyer))
	assert.Equal(t, marketAddr, f.owner(t, nameID))
	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)
}

func TestBuy_WrongCurrencyForListing(t *testing.T) {
	f := newFixture(t, Collection{})
	require.NoError(t, f.names.Approve(seller, marketAddr, nameID))
	id, err := f.mkt.ListTokenForCurrency(seller, colID, nameID, tokenUSD, price)
	require.NoError(t, err)

	_, err = f.mkt.Buy(buyer, id, price)
	assert.ErrorIs(t, err, ErrWrongCurrency)
	_, err = f.mkt.BuyWithToken(buyer, id, "eur-token", price)
	assert.ErrorIs(t, err, ErrWrongCurrency)
}

func TestBuy_InsufficientFunds(t *testing.T) {
	f := newFixture(t, Collection{})
	id := f.listNative(t, price)

	_, err := f.mkt.Buy(buyer, id, price)
	assert.ErrorIs(t, err, funds.ErrInsufficientFunds)

	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)
}

func TestBuy_SoldIsTerminal(t *testing.T) {
	f := newFixture(t, Collection{})
	f.bank.Credit(funds.Native, buyer, 2*price)
	id := f.listNative(t, price)

	_, err := f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)
	_, err = f.mkt.Buy(buyer, id, price)
	assert.ErrorIs(t, err, ErrListingNotActive)
	err = f.mkt.CancelListing(seller, id)
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestBuy_NoRoyalty(t *testing.T) {
	f := newFixture(t, Collection{})
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)

	st, err := f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)

	assert.Equal(t, RoyaltyNone, st.Path)
	assert.Equal(t, uint64(0), st.RoyaltyAmount)
	assert.Equal(t, uint64(97_500_000), f.balance(t, funds.Native, seller))
	assert.False(t, st.AnalyticsRecorded)
}

// rejectingReceiver bounces every native deposit.
type rejectingReceiver struct{}

func (rejectingReceiver) ReceiveNative(_ funds.Address, _ uint64) error {
	return errors.New("closed for deposits")
}

func TestBuy_RevertingReceiverFailsPurchase(t *testing.T) {
	royaltyAddr := funds.Address("royalty-addr")
	f := newFixture(t, Collection{Royalties: fixedRoyalty{recv: royaltyAddr, bps: 500}})
	require.NoError(t, f.bank.RegisterReceiver(royaltyAddr, rejectingReceiver{}))
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)

	// a native royalty has no fallback mechanism, so the purchase fails
	// and every movement is unwound
	_, err := f.mkt.Buy(buyer, id, price)
	require.Error(t, err)
	assert.ErrorIs(t, err, funds.ErrReceiverRejected)

	assert.Equal(t, price, f.balance(t, funds.Native, buyer))
	assert.Equal(t, uint64(0), f.balance(t, funds.Native, seller))
	assert.Equal(t, uint64(0), f.balance(t, funds.Native, royaltyAddr))
	assert.Equal(t, uint64(0), f.mkt.FeesAccrued(funds.Native))
	assert.Equal(t, marketAddr, f.owner(t, nameID))

	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)

	// the listing is still buyable once the receiver behaves
	f.setRoyalties(fixedRoyalty{recv: "good-royalty-addr", bps: 500})
	_, err = f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)
	assert.Equal(t, buyer, f.owner(t, nameID))
}

// stuckLedger wraps a MemLedger and refuses transfers to one address.
type stuckLedger struct {
	*nft.MemLedger
	refuse funds.Address
}

func (l *stuckLedger) Transfer(from, to funds.Address, id nft.TokenID) error {
	if to == l.refuse {
		return errors.New("ledger unavailable")
	}
	return l.MemLedger.Transfer(from, to, id)
}

func TestBuy_ReleaseFailureUnwinds(t *testing.T) {
	royaltyAddr := funds.Address("royalty-addr")
	f := newFixture(t, Collection{Royalties: fixedRoyalty{recv: royaltyAddr, bps: 500}})
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)

	// the ledger stops releasing to the buyer after escrow
	f.mkt.mu.Lock()
	col := f.mkt.collections[colID]
	col.Ledger = &stuckLedger{MemLedger: f.names, refuse: buyer}
	f.mkt.collections[colID] = col
	f.mkt.mu.Unlock()

	_, err := f.mkt.Buy(buyer, id, price)
	require.Error(t, err)

	assert.Equal(t, price, f.balance(t, funds.Native, buyer))
	assert.Equal(t, uint64(0), f.balance(t, funds.Native, seller))
	assert.Equal(t, uint64(0), f.balance(t, funds.Native, royaltyAddr))
	assert.Equal(t, uint64(0), f.mkt.FeesAccrued(funds.Native))
	assert.Equal(t, marketAddr, f.owner(t, nameID))

	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)
}

// reentrantBuyer tries to buy the same listing again from inside the royalty
// payout.
type reentrantBuyer struct {
	mkt     *Market
	listing uint64
	err     error
}

func (r *reentrantBuyer) ReceiveNative(_ funds.Address, _ uint64) error {
	_, r.err = r.mkt.Buy(buyer, r.listing, price)
	return r.err
}

func TestBuy_ReentrancyBlocked(t *testing.T) {
	royaltyAddr := funds.Address("royalty-addr")
	f := newFixture(t, Collection{Royalties: fixedRoyalty{recv: royaltyAddr, bps: 500}})
	reentrant := &reentrantBuyer{mkt: f.mkt}
	require.NoError(t, f.bank.RegisterReceiver(royaltyAddr, reentrant))
	f.bank.Credit(funds.Native, buyer, 2*price)
	id := f.listNative(t, price)
	reentrant.listing = id

	_, err := f.mkt.Buy(buyer, id, price)
	require.Error(t, err)

	// the reentrant attempt bounced off the guard and the rejected royalty
	// payment unwound the purchase
	assert.ErrorIs(t, reentrant.err, funds.ErrReentrantCall)
	assert.Equal(t, 2*price, f.balance(t, funds.Native, buyer))
	assert.Equal(t, uint64(0), f.balance(t, funds.Native, seller))
	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)
}

func TestBuyWithToken_StructuredDeposit(t *testing.T) {
	bankHolder := struct{ fac *splitter.Factory }{}
	f := newFixture(t, Collection{}, func(o *Options) {
		o.Lookup = func(addr funds.Address) (TokenDepositor, bool) {
			if bankHolder.fac == nil {
				return nil, false
			}
			sp, ok := bankHolder.fac.SplitterAt(addr)
			if !ok {
				return nil, false
			}
			return sp, true
		}
	})
	fac, sp := newRoyaltySplitter(t, f.bank)
	bankHolder.fac = fac
	f.setRoyalties(fixedRoyalty{recv: sp.Address(), bps: 500})

	f.bank.Credit(tokenUSD, buyer, price)
	require.NoError(t, f.bank.Approve(tokenUSD, buyer, marketAddr, price))
	require.NoError(t, f.names.Approve(seller, marketAddr, nameID))
	id, err := f.mkt.ListTokenForCurrency(seller, colID, nameID, tokenUSD, price)
	require.NoError(t, err)

	st, err := f.mkt.BuyWithToken(buyer, id, tokenUSD, price)
	require.NoError(t, err)

	assert.Equal(t, RoyaltyDeposit, st.Path)
	assert.Equal(t, uint64(5_000_000), st.RoyaltyAmount)
	assert.Equal(t, uint64(2_000_000), sp.TokenBalanceOf(tokenUSD, creator))
	assert.Equal(t, uint64(3_000_000), sp.TokenBalanceOf(tokenUSD, treasury))
	assert.Equal(t, uint64(92_500_000), f.balance(t, tokenUSD, seller))
	assert.Equal(t, uint64(2_500_000), f.mkt.FeesAccrued(tokenUSD))
	assert.Equal(t, buyer, f.owner(t, nameID))

	// the temporary allowance is gone
	allowed, err := f.bank.Allowance(tokenUSD, marketAddr, sp.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), allowed)
}

// failingDepositor rejects structured deposits outright.
type failingDepositor struct{}

func (failingDepositor) DepositToken(_ funds.Address, _ funds.Currency, _ uint64) error {
	return errors.New("deposit refused")
}

func TestBuyWithToken_DepositFallback(t *testing.T) {
	royaltyAddr := funds.Address("royalty-addr")
	f := newFixture(t, Collection{}, func(o *Options) {
		o.Lookup = func(addr funds.Address) (TokenDepositor, bool) {
			if addr == royaltyAddr {
				return failingDepositor{}, true
			}
			return nil, false
		}
	})
	f.setRoyalties(fixedRoyalty{recv: royaltyAddr, bps: 500})

	f.bank.Credit(tokenUSD, buyer, price)
	require.NoError(t, f.bank.Approve(tokenUSD, buyer, marketAddr, price))
	require.NoError(t, f.names.Approve(seller, marketAddr, nameID))
	id, err := f.mkt.ListTokenForCurrency(seller, colID, nameID, tokenUSD, price)
	require.NoError(t, err)

	// the rejected structured deposit degrades to a direct credit and the
	// purchase still completes
	st, err := f.mkt.BuyWithToken(buyer, id, tokenUSD, price)
	require.NoError(t, err)

	assert.Equal(t, RoyaltyTransfer, st.Path)
	assert.Equal(t, uint64(5_000_000), st.RoyaltyAmount)
	assert.Equal(t, uint64(5_000_000), f.balance(t, tokenUSD, royaltyAddr))
	assert.Equal(t, uint64(92_500_000), f.balance(t, tokenUSD, seller))
	assert.Equal(t, buyer, f.owner(t, nameID))

	allowed, err := f.bank.Allowance(tokenUSD, marketAddr, royaltyAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), allowed)
}

func TestBuyWithToken_Validation(t *testing.T) {
	f := newFixture(t, Collection{})
	require.NoError(t, f.names.Approve(seller, marketAddr, nameID))
	id, err := f.mkt.ListTokenForCurrency(seller, colID, nameID, tokenUSD, price)
	require.NoError(t, err)

	_, err = f.mkt.BuyWithToken(buyer, id, funds.Native, price)
	assert.ErrorIs(t, err, funds.ErrInvalidCurrency)

	// no allowance granted
	f.bank.Credit(tokenUSD, buyer, price)
	_, err = f.mkt.BuyWithToken(buyer, id, tokenUSD, price)
	assert.ErrorIs(t, err, funds.ErrInsufficientAllowance)

	lst, err := f.mkt.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, lst.Status)
}

func TestWithdrawFees(t *testing.T) {
	f := newFixture(t, Collection{})
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)

	_, err := f.mkt.WithdrawFees(admin)
	assert.ErrorIs(t, err, ErrNoFees)

	_, err = f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)

	_, err = f.mkt.WithdrawFees(stranger)
	assert.Error(t, err)

	got, err := f.mkt.WithdrawFees(admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), got)
	assert.Equal(t, uint64(2_500_000), f.balance(t, funds.Native, feeTreasury))
	assert.Equal(t, uint64(0), f.mkt.FeesAccrued(funds.Native))

	_, err = f.mkt.WithdrawFees(admin)
	assert.ErrorIs(t, err, ErrNoFees)
}

func TestWithdrawTokenFees(t *testing.T) {
	f := newFixture(t, Collection{})
	require.NoError(t, f.names.Approve(seller, marketAddr, nameID))
	id, err := f.mkt.ListTokenForCurrency(seller, colID, nameID, tokenUSD, price)
	require.NoError(t, err)
	f.bank.Credit(tokenUSD, buyer, price)
	require.NoError(t, f.bank.Approve(tokenUSD, buyer, marketAddr, price))
	_, err = f.mkt.BuyWithToken(buyer, id, tokenUSD, price)
	require.NoError(t, err)

	_, err = f.mkt.WithdrawTokenFees(admin, funds.Native)
	assert.ErrorIs(t, err, funds.ErrInvalidCurrency)

	got, err := f.mkt.WithdrawTokenFees(admin, tokenUSD)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), got)
	assert.Equal(t, uint64(2_500_000), f.balance(t, tokenUSD, feeTreasury))
}

func TestRecorderFailureDoesNotBlockSale(t *testing.T) {
	rec := &countingRecorder{fail: true}
	f := newFixture(t, Collection{Recorder: rec})
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)

	st, err := f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)
	assert.False(t, st.AnalyticsRecorded)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, buyer, f.owner(t, nameID))
}

func TestSettlementHistory(t *testing.T) {
	f := newFixture(t, Collection{})
	f.bank.Credit(funds.Native, buyer, price)
	id := f.listNative(t, price)
	_, err := f.mkt.Buy(buyer, id, price)
	require.NoError(t, err)

	all, err := f.mkt.SettlementsOf(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].Listing)

	ofListing, err := f.mkt.SettlementsOf(id)
	require.NoError(t, err)
	require.Len(t, ofListing, 1)

	none, err := f.mkt.SettlementsOf(404)
	require.NoError(t, err)
	assert.Empty(t, none)
}
