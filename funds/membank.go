package funds

import (
	"fmt"
	"sync"
)

// MemBank is an in-memory Bank for tests and single-process embedding. It
// supports native receiver hooks, which makes it a faithful stand-in for the
// execution environment the settlement core is written against: a hook can
// call back into any component while the outer transfer is still in flight.
type MemBank struct {
	mu         sync.Mutex
	balances   map[Currency]map[Address]uint64
	allowances map[Currency]map[Address]map[Address]uint64 // owner -> spender -> amount
	receivers  map[Address]NativeReceiver
}

// Compile-time interface checks.
var (
	_ Bank             = (*MemBank)(nil)
	_ ReceiverRegistry = (*MemBank)(nil)
)

// NewMemBank creates an empty in-memory bank.
func NewMemBank() *MemBank {
	return &MemBank{
		balances:   make(map[Currency]map[Address]uint64),
		allowances: make(map[Currency]map[Address]map[Address]uint64),
		receivers:  make(map[Address]NativeReceiver),
	}
}

// Credit mints amount of currency c to addr. Test and genesis helper.
func (b *MemBank) Credit(c Currency, addr Address, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(c, addr, amount)
}

// RegisterReceiver installs a native receiver hook at addr.
func (b *MemBank) RegisterReceiver(addr Address, r NativeReceiver) error {
	if addr.IsNull() {
		return ErrNullAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.receivers[addr]; exists {
		return fmt.Errorf("%w: %s", ErrReceiverExists, addr)
	}
	b.receivers[addr] = r
	return nil
}

// ReplaceReceiver installs a native receiver hook at addr, displacing any
// previous one.
func (b *MemBank) ReplaceReceiver(addr Address, r NativeReceiver) error {
	if addr.IsNull() {
		return ErrNullAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers[addr] = r
	return nil
}

// Transfer moves amount of currency c between addresses. A native transfer to
// an address with a registered receiver invokes the hook after the balance
// movement; a hook error restores both balances and fails the transfer.
//
// The hook runs without the bank lock held, so it may call back into the bank.
// If a failing hook has already spent part of the credited amount through such
// nested calls, the credit cannot be fully restored and remains in place.
func (b *MemBank) Transfer(c Currency, from, to Address, amount uint64) error {
	if c == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidCurrency)
	}
	if from.IsNull() || to.IsNull() {
		return ErrNullAddress
	}
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	if b.balance(c, from) < amount {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s has %d of %q, need %d", ErrInsufficientFunds, from, b.balance(c, from), c, amount)
	}
	b.balances[c][from] -= amount
	b.credit(c, to, amount)
	hook := b.receivers[to]
	b.mu.Unlock()

	if c != Native || hook == nil {
		return nil
	}
	if err := hook.ReceiveNative(from, amount); err != nil {
		b.mu.Lock()
		if b.balance(c, to) >= amount {
			b.balances[c][to] -= amount
			b.credit(c, from, amount)
		}
		b.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrReceiverRejected, err)
	}
	return nil
}

// TransferFrom moves amount of currency c from owner to recipient against
// spender's allowance. Token currencies only.
func (b *MemBank) TransferFrom(c Currency, owner, spender, to Address, amount uint64) error {
	if err := validToken(c); err != nil {
		return err
	}
	if owner.IsNull() || spender.IsNull() || to.IsNull() {
		return ErrNullAddress
	}
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allowance(c, owner, spender) < amount {
		return fmt.Errorf("%w: spender %s has %d of %q from %s, need %d",
			ErrInsufficientAllowance, spender, b.allowance(c, owner, spender), c, owner, amount)
	}
	if b.balance(c, owner) < amount {
		return fmt.Errorf("%w: %s has %d of %q, need %d", ErrInsufficientFunds, owner, b.balance(c, owner), c, amount)
	}

	b.allowances[c][owner][spender] -= amount
	b.balances[c][owner] -= amount
	b.credit(c, to, amount)
	return nil
}

// Approve sets spender's allowance over owner's currency c balance to amount.
func (b *MemBank) Approve(c Currency, owner, spender Address, amount uint64) error {
	if err := validToken(c); err != nil {
		return err
	}
	if owner.IsNull() || spender.IsNull() {
		return ErrNullAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	byOwner, ok := b.allowances[c]
	if !ok {
		byOwner = make(map[Address]map[Address]uint64)
		b.allowances[c] = byOwner
	}
	bySpender, ok := byOwner[owner]
	if !ok {
		bySpender = make(map[Address]uint64)
		byOwner[owner] = bySpender
	}
	bySpender[spender] = amount
	return nil
}

// Allowance reports spender's remaining allowance over owner's balance.
func (b *MemBank) Allowance(c Currency, owner, spender Address) (uint64, error) {
	if err := validToken(c); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowance(c, owner, spender), nil
}

// BalanceOf reports addr's balance in currency c.
func (b *MemBank) BalanceOf(c Currency, addr Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(c, addr), nil
}

func (b *MemBank) balance(c Currency, addr Address) uint64 {
	return b.balances[c][addr]
}

func (b *MemBank) allowance(c Currency, owner, spender Address) uint64 {
	return b.allowances[c][owner][spender]
}

func (b *MemBank) credit(c Currency, addr Address, amount uint64) {
	byAddr, ok := b.balances[c]
	if !ok {
		byAddr = make(map[Address]uint64)
		b.balances[c] = byAddr
	}
	byAddr[addr] += amount
}

func validToken(c Currency) error {
	if c == "" || c == Native {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
	}
	return nil
}
