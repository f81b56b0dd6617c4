// Package funds defines the currency boundary of the BitNS settlement core.
//
// Settlement components (splitter ledgers, the marketplace, the registry) never
// hold funds themselves; they instruct a Bank to move value between addresses
// and track their own apportionment on top. The Bank abstracts both the native
// currency and fungible token currencies behind one interface, with ERC20-style
// allowance semantics for third-party pulls.
package funds

// Currency identifies a fungible currency tracked by a Bank.
type Currency string

// Native is the sentinel currency for native value transfers.
// The zero value "" is not a valid currency in token operations.
const Native Currency = "native"

// TotalBps is the number of basis points in a whole (100%).
const TotalBps = 10_000

// Bank moves value between addresses on behalf of settlement components.
//
// All operations fail loudly: insufficient balance or allowance is an error,
// never a silent truncation. A zero-amount transfer is a no-op returning nil.
type Bank interface {
	// Transfer moves amount of currency c from one address to another.
	// For the native currency, a NativeReceiver registered at the destination
	// is invoked synchronously; if the receiver rejects, the transfer fails
	// and balances are restored.
	Transfer(c Currency, from, to Address, amount uint64) error

	// TransferFrom moves amount of currency c from owner to recipient on the
	// authority of spender's allowance. Fails if the allowance or the owner's
	// balance is insufficient.
	TransferFrom(c Currency, owner, spender, to Address, amount uint64) error

	// Approve sets spender's allowance over owner's balance of currency c to
	// exactly amount (not incremental). Approving zero revokes.
	Approve(c Currency, owner, spender Address, amount uint64) error

	// Allowance reports spender's remaining allowance over owner's balance.
	Allowance(c Currency, owner, spender Address) (uint64, error)

	// BalanceOf reports the balance of addr in currency c.
	BalanceOf(c Currency, addr Address) (uint64, error)
}

// NativeReceiver is the hook a contract-like component registers against its
// own address. A native transfer to that address invokes the hook after the
// balance movement; a hook error fails the whole transfer.
//
// The hook runs arbitrary code while the sender's operation is in flight,
// which is exactly the reentrancy surface Guard defends against.
type NativeReceiver interface {
	ReceiveNative(from Address, amount uint64) error
}

// ReceiverRegistry is implemented by banks that support native receiver hooks.
type ReceiverRegistry interface {
	// RegisterReceiver installs a hook at addr. Fails if one is already
	// registered there.
	RegisterReceiver(addr Address, r NativeReceiver) error

	// ReplaceReceiver installs a hook at addr, displacing any previous one.
	// Used when a component is rehydrated from storage and takes its address
	// back over.
	ReplaceReceiver(addr Address, r NativeReceiver) error
}

// Cut returns floor(amount * bps / TotalBps) without intermediate overflow.
func Cut(amount uint64, bps uint32) uint64 {
	b := uint64(bps)
	return amount/TotalBps*b + amount%TotalBps*b/TotalBps
}
