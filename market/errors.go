package market

import "errors"

var (
	// ErrUnknownCollection indicates no collection is registered under the id.
	ErrUnknownCollection = errors.New("market: unknown collection")

	// ErrCollectionExists indicates the collection id is already registered.
	ErrCollectionExists = errors.New("market: collection already registered")

	// ErrUnknownListing indicates no listing exists with the id.
	ErrUnknownListing = errors.New("market: unknown listing")

	// ErrListingNotActive indicates the listing was already sold or canceled.
	ErrListingNotActive = errors.New("market: listing not active")

	// ErrNotSeller indicates the caller did not create the listing.
	ErrNotSeller = errors.New("market: caller is not the seller")

	// ErrZeroPrice indicates a listing with a zero price.
	ErrZeroPrice = errors.New("market: price is zero")

	// ErrSelfPurchase indicates the seller tried to buy their own listing.
	ErrSelfPurchase = errors.New("market: buyer is the seller")

	// ErrWrongPayment indicates the payment does not match the listing price.
	ErrWrongPayment = errors.New("market: payment does not match price")

	// ErrWrongCurrency indicates the purchase used the wrong settlement path
	// for the listing's currency.
	ErrWrongCurrency = errors.New("market: wrong currency for listing")

	// ErrNotApproved indicates the marketplace lacks transfer approval for
	// the token being listed.
	ErrNotApproved = errors.New("market: marketplace not approved for token")

	// ErrFeeTooHigh indicates a fee above the protocol ceiling.
	ErrFeeTooHigh = errors.New("market: fee bps exceeds ceiling")

	// ErrNoFees indicates an empty fee pool for the requested currency.
	ErrNoFees = errors.New("market: no fees to withdraw")
)
