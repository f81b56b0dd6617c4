// Package nft defines the name-token ledger boundary consumed by the
// settlement core. Ownership bookkeeping itself lives outside this module; the
// marketplace and registry only need the operations below to verify ownership,
// check authorization, and move custody.
package nft

import (
	"sync"

	"github.com/bitnsorg/libbitns-go/funds"
)

// TokenID identifies a minted name token.
type TokenID uint64

// Ledger is the ownership surface of a name-token collection.
//
// Transfer enforces only that from is the current owner; authorization of the
// party requesting the transfer is the caller's responsibility, checked via
// GetApproved / IsApprovedForAll before custody moves.
type Ledger interface {
	OwnerOf(id TokenID) (funds.Address, error)
	Transfer(from, to funds.Address, id TokenID) error
	Approve(owner, approved funds.Address, id TokenID) error
	GetApproved(id TokenID) (funds.Address, error)
	SetApprovalForAll(owner, operator funds.Address, approved bool) error
	IsApprovedForAll(owner, operator funds.Address) (bool, error)
}

// MemLedger is an in-memory Ledger for tests and single-process embedding.
type MemLedger struct {
	mu        sync.RWMutex
	owners    map[TokenID]funds.Address
	approved  map[TokenID]funds.Address
	operators map[funds.Address]map[funds.Address]bool
}

var _ Ledger = (*MemLedger)(nil)

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		owners:    make(map[TokenID]funds.Address),
		approved:  make(map[TokenID]funds.Address),
		operators: make(map[funds.Address]map[funds.Address]bool),
	}
}

// Mint assigns a fresh token to an owner.
func (l *MemLedger) Mint(to funds.Address, id TokenID) error {
	if to.IsNull() {
		return funds.ErrNullAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.owners[id]; exists {
		return ErrTokenExists
	}
	l.owners[id] = to
	return nil
}

// Burn removes a token from the ledger. Only the current owner may burn.
func (l *MemLedger) Burn(owner funds.Address, id TokenID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	got, ok := l.owners[id]
	if !ok {
		return ErrUnknownToken
	}
	if got != owner {
		return ErrNotOwner
	}
	delete(l.owners, id)
	delete(l.approved, id)
	return nil
}

// OwnerOf returns the current owner of a token.
func (l *MemLedger) OwnerOf(id TokenID) (funds.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[id]
	if !ok {
		return funds.NullAddress, ErrUnknownToken
	}
	return owner, nil
}

// Transfer moves a token from its current owner to a new owner and clears any
// per-token approval.
func (l *MemLedger) Transfer(from, to funds.Address, id TokenID) error {
	if from.IsNull() || to.IsNull() {
		return funds.ErrNullAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[id]
	if !ok {
		return ErrUnknownToken
	}
	if owner != from {
		return ErrNotOwner
	}
	l.owners[id] = to
	delete(l.approved, id)
	return nil
}

// Approve grants a single-token approval. Only the current owner may approve.
func (l *MemLedger) Approve(owner, approved funds.Address, id TokenID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.owners[id]
	if !ok {
		return ErrUnknownToken
	}
	if current != owner {
		return ErrNotOwner
	}
	if approved.IsNull() {
		delete(l.approved, id)
		return nil
	}
	l.approved[id] = approved
	return nil
}

// GetApproved returns the approved address for a token, or the null address.
func (l *MemLedger) GetApproved(id TokenID) (funds.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.owners[id]; !ok {
		return funds.NullAddress, ErrUnknownToken
	}
	return l.approved[id], nil
}

// SetApprovalForAll grants or revokes blanket operator approval.
func (l *MemLedger) SetApprovalForAll(owner, operator funds.Address, approved bool) error {
	if owner.IsNull() || operator.IsNull() {
		return funds.ErrNullAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ops, ok := l.operators[owner]
	if !ok {
		ops = make(map[funds.Address]bool)
		l.operators[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
	return nil
}

// IsApprovedForAll reports whether operator holds blanket approval from owner.
func (l *MemLedger) IsApprovedForAll(owner, operator funds.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[owner][operator], nil
}
