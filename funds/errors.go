package funds

import "errors"

var (
	// ErrInvalidAddress indicates the string is not a valid P2PKH address.
	ErrInvalidAddress = errors.New("funds: invalid address")

	// ErrNullAddress indicates an operation received the null address.
	ErrNullAddress = errors.New("funds: null address")

	// ErrInvalidCurrency indicates a token operation received the native
	// sentinel or an empty currency identifier.
	ErrInvalidCurrency = errors.New("funds: invalid currency for token operation")

	// ErrInsufficientFunds indicates the source balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("funds: insufficient balance")

	// ErrInsufficientAllowance indicates the spender's allowance cannot cover the amount.
	ErrInsufficientAllowance = errors.New("funds: insufficient allowance")

	// ErrReceiverRejected indicates the destination's native receiver hook failed.
	ErrReceiverRejected = errors.New("funds: receiver rejected transfer")

	// ErrReceiverExists indicates a native receiver is already registered at the address.
	ErrReceiverExists = errors.New("funds: receiver already registered")

	// ErrReentrantCall indicates a guarded operation was re-entered before completing.
	ErrReentrantCall = errors.New("funds: reentrant call")

	// ErrEmptySeed indicates address derivation was given an empty seed.
	ErrEmptySeed = errors.New("funds: derivation seed is empty")
)
