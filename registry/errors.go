package registry

import "errors"

var (
	// ErrZeroPrice indicates a sale with a zero price.
	ErrZeroPrice = errors.New("registry: price is zero")

	// ErrSelfPurchase indicates buyer and seller are the same address.
	ErrSelfPurchase = errors.New("registry: buyer is the seller")

	// ErrSellerNotOwner indicates the seller does not own the token being sold.
	ErrSellerNotOwner = errors.New("registry: seller does not own token")

	// ErrBpsTooHigh indicates a royalty rate above 10,000 bps.
	ErrBpsTooHigh = errors.New("registry: royalty bps exceeds 10000")

	// ErrNoSplitterFactory indicates the registry was assembled without a
	// splitter factory and cannot attach per-token splitters.
	ErrNoSplitterFactory = errors.New("registry: no splitter factory configured")

	// ErrBadShareSplit indicates splitter shares that do not sum to 10,000 bps.
	ErrBadShareSplit = errors.New("registry: splitter shares must sum to 10000")

	// ErrConfigNotFound indicates the store holds no royalty configuration.
	ErrConfigNotFound = errors.New("registry: royalty configuration not found")
)
