package splitter

import "errors"

var (
	// ErrNotInitialized indicates the splitter has not been initialized yet.
	ErrNotInitialized = errors.New("splitter: not initialized")

	// ErrAlreadyInitialized indicates a second initialization attempt.
	ErrAlreadyInitialized = errors.New("splitter: already initialized")

	// ErrBadSplit indicates creator and treasury shares do not sum to 10,000 bps.
	ErrBadSplit = errors.New("splitter: shares must sum to 10000 bps")

	// ErrZeroAmount indicates a deposit of zero.
	ErrZeroAmount = errors.New("splitter: amount is zero")

	// ErrNoFunds indicates the caller has no outstanding balance to withdraw.
	ErrNoFunds = errors.New("splitter: no funds")

	// ErrSameAddress indicates a recipient update to the current address.
	ErrSameAddress = errors.New("splitter: new address equals current address")

	// ErrNotAuthorized indicates the caller may not update this recipient.
	ErrNotAuthorized = errors.New("splitter: caller not authorized")

	// ErrUnknownSplitter indicates no instance exists with the given handle.
	ErrUnknownSplitter = errors.New("splitter: unknown instance")

	// ErrStateNotFound indicates the store holds no state for the handle.
	ErrStateNotFound = errors.New("splitter: state not found")
)
