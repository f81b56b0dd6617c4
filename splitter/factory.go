package splitter

import (
	"fmt"
	"sync"

	"github.com/bitnsorg/libbitns-go/access"
	"github.com/bitnsorg/libbitns-go/funds"
)

// PermFactoryAdmin is the factory-level administrative permission.
const PermFactoryAdmin = "splitter-factory-admin"

// deriveInfo is the HKDF info string for instance custody addresses.
const deriveInfo = "bitns-splitter-instance"

// Factory stamps out splitter instances from a common template, one per
// minted name. Instances share the template's wiring (bank, store) but never
// its state: each gets fresh balance maps and its own custody address,
// deterministically derived from the factory seed and the instance handle.
type Factory struct {
	bank  funds.Bank
	store Store
	seed  []byte
	admin funds.Address
	acl   *access.Table

	mu       sync.Mutex
	next     uint64
	byHandle map[uint64]*Splitter
	byAddr   map[funds.Address]*Splitter
	template *Splitter
}

// NewFactory creates a factory and rehydrates any instances already persisted
// in the store, re-registering them as native receivers with the bank.
//
// admin becomes both the factory administrator and the initializing caller
// for every instance the factory creates, so it holds the per-instance admin
// permission as well.
func NewFactory(bank funds.Bank, store Store, seed []byte, admin funds.Address) (*Factory, error) {
	if len(seed) == 0 {
		return nil, funds.ErrEmptySeed
	}
	if admin.IsNull() {
		return nil, funds.ErrNullAddress
	}

	f := &Factory{
		bank:     bank,
		store:    store,
		seed:     seed,
		admin:    admin,
		acl:      access.NewTable(),
		next:     1,
		byHandle: make(map[uint64]*Splitter),
		byAddr:   make(map[funds.Address]*Splitter),
		template: &Splitter{bank: bank, store: store},
	}
	f.acl.Grant(PermFactoryAdmin, admin)

	states, err := store.States()
	if err != nil {
		return nil, fmt.Errorf("splitter: load states: %w", err)
	}
	for _, st := range states {
		inst := f.rehydrate(st)
		f.byHandle[inst.handle] = inst
		f.byAddr[inst.addr] = inst
		if err := f.replaceReceiver(inst); err != nil {
			return nil, err
		}
		if inst.handle >= f.next {
			f.next = inst.handle + 1
		}
	}
	return f, nil
}

// CreateSplitter deploys a new instance cloned from the template and
// initializes it in the same call. Fails before any instance is created if
// either address is null or the shares do not sum to 10,000 bps.
func (f *Factory) CreateSplitter(creator, treasury funds.Address, creatorBps, treasuryBps uint32) (*Splitter, error) {
	if creator.IsNull() || treasury.IsNull() {
		return nil, funds.ErrNullAddress
	}
	if creatorBps+treasuryBps != funds.TotalBps {
		return nil, fmt.Errorf("%w: %d + %d", ErrBadSplit, creatorBps, treasuryBps)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	handle := f.next
	addr, err := funds.DeriveAddress(f.seed, handle, deriveInfo)
	if err != nil {
		return nil, fmt.Errorf("splitter: derive instance address: %w", err)
	}

	inst := f.template.clone(handle, addr)
	if err := inst.Initialize(f.admin, creator, treasury, creatorBps, treasuryBps); err != nil {
		return nil, err
	}
	if err := f.registerReceiver(inst); err != nil {
		return nil, err
	}

	f.next++
	f.byHandle[handle] = inst
	f.byAddr[addr] = inst

	// The creation record is an audit entry; the instance snapshot persisted
	// by Initialize is authoritative, so a record failure does not undo the
	// deployment.
	_ = f.store.AppendRecord(&Record{
		Handle:      handle,
		Kind:        RecordCreated,
		Creator:     creator,
		Treasury:    treasury,
		CreatorBps:  creatorBps,
		TreasuryBps: treasuryBps,
	})
	return inst, nil
}

// UpdateSplitterTreasury forwards a treasury update to an instance on the
// factory administrator's authority.
func (f *Factory) UpdateSplitterTreasury(caller funds.Address, handle uint64, newTreasury funds.Address) error {
	if err := f.acl.Require(PermFactoryAdmin, caller); err != nil {
		return err
	}
	inst, err := f.Get(handle)
	if err != nil {
		return err
	}
	return inst.UpdateTreasury(f.admin, newTreasury)
}

// Get returns the instance with the given handle.
func (f *Factory) Get(handle uint64) (*Splitter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrUnknownSplitter, handle)
	}
	return inst, nil
}

// SplitterAt returns the instance whose custody address is addr, if any.
// Marketplace and registry settlement use this to decide whether a royalty
// receiver understands structured deposits.
func (f *Factory) SplitterAt(addr funds.Address) (*Splitter, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.byAddr[addr]
	return inst, ok
}

// Handles returns the handles of all instances in ascending order.
func (f *Factory) Handles() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.byHandle))
	for h := uint64(1); h < f.next; h++ {
		if _, ok := f.byHandle[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// clone stamps a new uninitialized instance from the template.
func (s *Splitter) clone(handle uint64, addr funds.Address) *Splitter {
	return &Splitter{
		handle: handle,
		addr:   addr,
		bank:   s.bank,
		store:  s.store,
		acl:    access.NewTable(),
		native: make(map[funds.Address]uint64),
		tokens: make(map[funds.Currency]map[funds.Address]uint64),
	}
}

// rehydrate rebuilds a live instance from a persisted snapshot. Permission
// grants are not persisted; the factory admin is re-granted on load.
func (f *Factory) rehydrate(st *State) *Splitter {
	inst := f.template.clone(st.Handle, st.Address)
	inst.initialized = st.Initialized
	inst.creator = st.Creator
	inst.treasury = st.Treasury
	inst.creatorBps = st.CreatorBps
	inst.treasuryBps = st.TreasuryBps
	for a, v := range st.Native {
		inst.native[a] = v
	}
	for c, byAddr := range st.Tokens {
		m := make(map[funds.Address]uint64, len(byAddr))
		for a, v := range byAddr {
			m[a] = v
		}
		inst.tokens[c] = m
	}
	inst.tracked = append(inst.tracked, st.Tracked...)
	if st.Initialized {
		inst.acl.Grant(PermAdmin, f.admin)
	}
	return inst
}

// registerReceiver installs the instance's native deposit hook if the bank
// supports receiver registration. Banks without hooks still work for token
// deposits.
func (f *Factory) registerReceiver(inst *Splitter) error {
	rr, ok := f.bank.(funds.ReceiverRegistry)
	if !ok {
		return nil
	}
	if err := rr.RegisterReceiver(inst.addr, inst); err != nil {
		return fmt.Errorf("splitter: register receiver: %w", err)
	}
	return nil
}

// replaceReceiver reinstalls a rehydrated instance's hook, taking the address
// back over from any instance registered before the restart.
func (f *Factory) replaceReceiver(inst *Splitter) error {
	rr, ok := f.bank.(funds.ReceiverRegistry)
	if !ok {
		return nil
	}
	if err := rr.ReplaceReceiver(inst.addr, inst); err != nil {
		return fmt.Errorf("splitter: replace receiver: %w", err)
	}
	return nil
}
