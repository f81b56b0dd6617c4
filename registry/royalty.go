package registry

import (
	"github.com/bitnsorg/libbitns-go/funds"
	"github.com/bitnsorg/libbitns-go/nft"
)

// RoyaltyInfo names the receiver of a royalty and its rate in basis points.
// A null receiver disables the royalty.
type RoyaltyInfo struct {
	Receiver funds.Address
	Bps      uint32
}

// RoyaltyState is the persisted royalty configuration: one default rate plus
// per-token overrides.
type RoyaltyState struct {
	Default   RoyaltyInfo
	Overrides map[nft.TokenID]RoyaltyInfo
}

// ResolveRoyalty returns the royalty receiver and amount owed for a sale of
// the given token at the given price. Tokens without an override use the
// default configuration. A null receiver resolves to a zero royalty.
func (r *Registry) ResolveRoyalty(id nft.TokenID, salePrice uint64) (funds.Address, uint64) {
	r.mu.RLock()
	info, ok := r.overrides[id]
	if !ok {
		info = r.def
	}
	r.mu.RUnlock()

	if info.Receiver.IsNull() || info.Bps == 0 {
		return funds.NullAddress, 0
	}
	return info.Receiver, funds.Cut(salePrice, info.Bps)
}

// DefaultRoyalty returns the collection-wide default royalty.
func (r *Registry) DefaultRoyalty() RoyaltyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// TokenRoyalty returns the override for the given token, if one is set.
func (r *Registry) TokenRoyalty(id nft.TokenID) (RoyaltyInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.overrides[id]
	return info, ok
}

// SetDefaultRoyalty replaces the collection-wide default royalty. The caller
// must hold the registry admin permission.
func (r *Registry) SetDefaultRoyalty(caller funds.Address, info RoyaltyInfo) error {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	if info.Bps > funds.TotalBps {
		return ErrBpsTooHigh
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.def
	r.def = info
	if err := r.persistLocked(); err != nil {
		r.def = prev
		return err
	}
	return nil
}

// SetTokenRoyalty sets a per-token royalty override. The caller must hold the
// registry admin permission.
func (r *Registry) SetTokenRoyalty(caller funds.Address, id nft.TokenID, info RoyaltyInfo) error {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return err
	}
	if info.Bps > funds.TotalBps {
		return ErrBpsTooHigh
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.overrides[id]
	r.overrides[id] = info
	if err := r.persistLocked(); err != nil {
		if existed {
			r.overrides[id] = prev
		} else {
			delete(r.overrides, id)
		}
		return err
	}
	return nil
}

// ResetTokenRoyalty removes a per-token override so the token falls back to
// the default royalty. The caller must hold the registry admin permission.
func (r *Registry) ResetTokenRoyalty(caller funds.Address, id nft.TokenID) error {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.overrides[id]
	if !existed {
		return nil
	}
	delete(r.overrides, id)
	if err := r.persistLocked(); err != nil {
		r.overrides[id] = prev
		return err
	}
	return nil
}

// SetupTokenRoyalty creates a dedicated revenue splitter for the token's
// creator and installs it as the token's royalty receiver at the current
// default rate. The splitter pays out on the registry's configured creator and
// treasury shares. The caller must hold the registry admin permission.
func (r *Registry) SetupTokenRoyalty(caller funds.Address, id nft.TokenID, creator funds.Address) (funds.Address, error) {
	if err := r.acl.Require(PermAdmin, caller); err != nil {
		return funds.NullAddress, err
	}
	if r.splitters == nil {
		return funds.NullAddress, ErrNoSplitterFactory
	}
	if creator.IsNull() {
		return funds.NullAddress, funds.ErrNullAddress
	}

	addr, err := r.splitters(creator, r.treasury, r.creatorShare, r.treasuryShare)
	if err != nil {
		return funds.NullAddress, err
	}

	r.mu.Lock()
	rate := r.def.Bps
	r.mu.Unlock()

	if err := r.SetTokenRoyalty(caller, id, RoyaltyInfo{Receiver: addr, Bps: rate}); err != nil {
		return funds.NullAddress, err
	}
	return addr, nil
}
