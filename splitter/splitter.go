// Package splitter implements the royalty-splitting ledger: an isolated
// accounting unit that receives funds on behalf of a creator and a treasury,
// apportions every deposit by basis points, and lets each recipient pull their
// own balance. Instances are stamped out by a Factory, one per minted name.
//
// Payments are strictly pull-based. Deposits only ever credit internal
// balances; recipients withdraw on their own initiative, so a recipient that
// cannot accept funds can never block deposits for the other.
package splitter

import (
	"fmt"
	"sync"

	"github.com/bitnsorg/libbitns-go/access"
	"github.com/bitnsorg/libbitns-go/funds"
)

// PermAdmin is the per-instance administrative permission. It is granted to
// the caller that initializes the instance.
const PermAdmin = "splitter-admin"

// Splitter is one royalty-splitting ledger instance. It owns a bank custody
// address; all deposited value sits at that address until withdrawn, while the
// internal maps record how much of it belongs to whom.
type Splitter struct {
	handle uint64
	addr   funds.Address
	bank   funds.Bank
	store  Store
	acl    *access.Table

	guard funds.Guard

	mu          sync.RWMutex
	initialized bool
	creator     funds.Address
	treasury    funds.Address
	creatorBps  uint32
	treasuryBps uint32
	native      map[funds.Address]uint64
	tokens      map[funds.Currency]map[funds.Address]uint64
	tracked     []funds.Currency
}

var _ funds.NativeReceiver = (*Splitter)(nil)

// Handle returns the factory-assigned instance handle.
func (s *Splitter) Handle() uint64 { return s.handle }

// Address returns the instance's bank custody address.
func (s *Splitter) Address() funds.Address { return s.addr }

// Initialized reports whether the instance has been initialized.
func (s *Splitter) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Creator returns the current creator recipient.
func (s *Splitter) Creator() funds.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creator
}

// Treasury returns the current treasury recipient.
func (s *Splitter) Treasury() funds.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury
}

// Splits returns the current (creator, treasury) shares in basis points.
func (s *Splitter) Splits() (uint32, uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creatorBps, s.treasuryBps
}

// NativeBalanceOf returns addr's withdrawable native balance.
func (s *Splitter) NativeBalanceOf(addr funds.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.native[addr]
}

// TokenBalanceOf returns addr's withdrawable balance in currency c.
func (s *Splitter) TokenBalanceOf(c funds.Currency, addr funds.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[c][addr]
}

// TrackedCurrencies returns every token currency ever deposited, in first-seen
// order.
func (s *Splitter) TrackedCurrencies() []funds.Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]funds.Currency, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// Initialize sets the recipients and shares, exactly once. The caller is
// granted the administrative permission over this instance.
func (s *Splitter) Initialize(caller, creator, treasury funds.Address, creatorBps, treasuryBps uint32) error {
	if caller.IsNull() || creator.IsNull() || treasury.IsNull() {
		return funds.ErrNullAddress
	}
	if creatorBps+treasuryBps != funds.TotalBps {
		return fmt.Errorf("%w: %d + %d", ErrBadSplit, creatorBps, treasuryBps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.creator = creator
	s.treasury = treasury
	s.creatorBps = creatorBps
	s.treasuryBps = treasuryBps
	s.acl.Grant(PermAdmin, caller)

	if err := s.persistLocked(); err != nil {
		s.initialized = false
		s.creator, s.treasury = funds.NullAddress, funds.NullAddress
		s.creatorBps, s.treasuryBps = 0, 0
		s.acl.Revoke(PermAdmin, caller)
		return err
	}
	// The lifecycle record is an audit entry; the committed snapshot above is
	// authoritative, so a record failure does not undo initialization.
	_ = s.store.AppendRecord(&Record{
		Handle:      s.handle,
		Kind:        RecordInitialized,
		Creator:     creator,
		Treasury:    treasury,
		CreatorBps:  creatorBps,
		TreasuryBps: treasuryBps,
	})
	return nil
}

// ReceiveNative is the bank receiver hook: it credits an incoming native
// deposit to the two recipients. creatorCut = floor(amount*creatorBps/10000);
// the treasury takes the remainder, so the two cuts always sum to amount.
func (s *Splitter) ReceiveNative(from funds.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	creatorCut := funds.Cut(amount, s.creatorBps)
	treasuryCut := amount - creatorCut
	s.native[s.creator] += creatorCut
	s.native[s.treasury] += treasuryCut

	if err := s.persistLocked(); err != nil {
		s.native[s.creator] -= creatorCut
		s.native[s.treasury] -= treasuryCut
		return err
	}
	return nil
}

// DepositToken pulls amount of currency c from the depositor's bank balance
// (against this instance's allowance) and credits both recipients under the
// same split rule as native deposits. The currency joins the tracked set so a
// later recipient migration sweeps it.
func (s *Splitter) DepositToken(from funds.Address, c funds.Currency, amount uint64) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if from.IsNull() {
		return funds.ErrNullAddress
	}
	if c == "" || c == funds.Native {
		return fmt.Errorf("%w: %q", funds.ErrInvalidCurrency, c)
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if !s.Initialized() {
		return ErrNotInitialized
	}

	// Pull first: a failed pull leaves no state to unwind.
	if err := s.bank.TransferFrom(c, from, s.addr, s.addr, amount); err != nil {
		return fmt.Errorf("splitter: deposit pull: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	creatorCut := funds.Cut(amount, s.creatorBps)
	treasuryCut := amount - creatorCut

	byAddr, ok := s.tokens[c]
	if !ok {
		byAddr = make(map[funds.Address]uint64)
		s.tokens[c] = byAddr
	}
	byAddr[s.creator] += creatorCut
	byAddr[s.treasury] += treasuryCut

	newlyTracked := !s.isTracked(c)
	if newlyTracked {
		s.tracked = append(s.tracked, c)
	}

	if err := s.persistLocked(); err != nil {
		byAddr[s.creator] -= creatorCut
		byAddr[s.treasury] -= treasuryCut
		if newlyTracked {
			s.tracked = s.tracked[:len(s.tracked)-1]
		}
		_ = s.bank.Transfer(c, s.addr, from, amount)
		return err
	}
	return nil
}

// Withdraw pays the caller their entire outstanding native balance and returns
// the amount paid. The balance is zeroed before the bank transfer; if the
// transfer fails the balance is restored and the error returned.
func (s *Splitter) Withdraw(caller funds.Address) (uint64, error) {
	if err := s.guard.Enter(); err != nil {
		return 0, err
	}
	defer s.guard.Exit()

	if caller.IsNull() {
		return 0, funds.ErrNullAddress
	}

	s.mu.Lock()
	amount := s.native[caller]
	if amount == 0 {
		s.mu.Unlock()
		return 0, ErrNoFunds
	}
	s.native[caller] = 0
	if err := s.persistLocked(); err != nil {
		s.native[caller] = amount
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	if err := s.bank.Transfer(funds.Native, s.addr, caller, amount); err != nil {
		s.mu.Lock()
		s.native[caller] += amount
		_ = s.persistLocked()
		s.mu.Unlock()
		return 0, fmt.Errorf("splitter: withdraw transfer: %w", err)
	}
	return amount, nil
}

// WithdrawToken pays the caller their entire outstanding balance in currency c.
// Same pull-payment discipline as Withdraw.
func (s *Splitter) WithdrawToken(caller funds.Address, c funds.Currency) (uint64, error) {
	if err := s.guard.Enter(); err != nil {
		return 0, err
	}
	defer s.guard.Exit()

	if caller.IsNull() {
		return 0, funds.ErrNullAddress
	}
	if c == "" || c == funds.Native {
		return 0, fmt.Errorf("%w: %q", funds.ErrInvalidCurrency, c)
	}

	s.mu.Lock()
	amount := s.tokens[c][caller]
	if amount == 0 {
		s.mu.Unlock()
		return 0, ErrNoFunds
	}
	s.tokens[c][caller] = 0
	if err := s.persistLocked(); err != nil {
		s.tokens[c][caller] = amount
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	if err := s.bank.Transfer(c, s.addr, caller, amount); err != nil {
		s.mu.Lock()
		s.tokens[c][caller] += amount
		_ = s.persistLocked()
		s.mu.Unlock()
		return 0, fmt.Errorf("splitter: withdraw transfer: %w", err)
	}
	return amount, nil
}

// UpdateCreator replaces the creator address. Only the current creator may do
// this. The old address's native balance and its balance in every tracked
// currency move to the new address atomically.
func (s *Splitter) UpdateCreator(caller, newCreator funds.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if caller != s.creator {
		return fmt.Errorf("%w: only the current creator may update the creator address", ErrNotAuthorized)
	}
	if err := s.validateNewRecipient(newCreator, s.creator); err != nil {
		return err
	}

	old := s.creator
	s.migrateLocked(old, newCreator)
	s.creator = newCreator

	if err := s.persistLocked(); err != nil {
		s.migrateLocked(newCreator, old)
		s.creator = old
		return err
	}
	return nil
}

// UpdateTreasury replaces the treasury address. The current treasury or an
// instance administrator may do this. Balances migrate as in UpdateCreator.
func (s *Splitter) UpdateTreasury(caller, newTreasury funds.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if caller != s.treasury && !s.acl.Has(PermAdmin, caller) {
		return fmt.Errorf("%w: only the current treasury or an administrator may update the treasury address", ErrNotAuthorized)
	}
	if err := s.validateNewRecipient(newTreasury, s.treasury); err != nil {
		return err
	}

	old := s.treasury
	s.migrateLocked(old, newTreasury)
	s.treasury = newTreasury

	if err := s.persistLocked(); err != nil {
		s.migrateLocked(newTreasury, old)
		s.treasury = old
		return err
	}
	return nil
}

// SetSplits changes the share ratio for future deposits. Administrator only.
// Outstanding balances are untouched.
func (s *Splitter) SetSplits(caller funds.Address, creatorBps, treasuryBps uint32) error {
	if err := s.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	if creatorBps+treasuryBps != funds.TotalBps {
		return fmt.Errorf("%w: %d + %d", ErrBadSplit, creatorBps, treasuryBps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	oldC, oldT := s.creatorBps, s.treasuryBps
	s.creatorBps, s.treasuryBps = creatorBps, treasuryBps
	if err := s.persistLocked(); err != nil {
		s.creatorBps, s.treasuryBps = oldC, oldT
		return err
	}
	return nil
}

func (s *Splitter) validateNewRecipient(newAddr, current funds.Address) error {
	if newAddr.IsNull() {
		return funds.ErrNullAddress
	}
	if newAddr == current {
		return ErrSameAddress
	}
	return nil
}

// migrateLocked moves every balance of src to dst: native plus all tracked
// currencies. Caller holds s.mu.
func (s *Splitter) migrateLocked(src, dst funds.Address) {
	if amt := s.native[src]; amt > 0 {
		s.native[dst] += amt
	}
	delete(s.native, src)
	for _, c := range s.tracked {
		byAddr := s.tokens[c]
		if byAddr == nil {
			continue
		}
		if amt := byAddr[src]; amt > 0 {
			byAddr[dst] += amt
		}
		delete(byAddr, src)
	}
}

func (s *Splitter) isTracked(c funds.Currency) bool {
	for _, t := range s.tracked {
		if t == c {
			return true
		}
	}
	return false
}

// persistLocked writes the current state through to the store. Caller holds
// s.mu (write).
func (s *Splitter) persistLocked() error {
	if err := s.store.SaveState(s.snapshotLocked()); err != nil {
		return fmt.Errorf("splitter: persist state: %w", err)
	}
	return nil
}

func (s *Splitter) snapshotLocked() *State {
	st := &State{
		Handle:      s.handle,
		Address:     s.addr,
		Initialized: s.initialized,
		Creator:     s.creator,
		Treasury:    s.treasury,
		CreatorBps:  s.creatorBps,
		TreasuryBps: s.treasuryBps,
		Native:      make(map[funds.Address]uint64, len(s.native)),
		Tokens:      make(map[funds.Currency]map[funds.Address]uint64, len(s.tokens)),
		Tracked:     make([]funds.Currency, len(s.tracked)),
	}
	for a, v := range s.native {
		st.Native[a] = v
	}
	for c, byAddr := range s.tokens {
		m := make(map[funds.Address]uint64, len(byAddr))
		for a, v := range byAddr {
			m[a] = v
		}
		st.Tokens[c] = m
	}
	copy(st.Tracked, s.tracked)
	return st
}
