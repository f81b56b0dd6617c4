package nft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitnsorg/libbitns-go/funds"
)

const (
	alice funds.Address = "alice"
	bob   funds.Address = "bob"
	carol funds.Address = "carol"
)

func TestMemLedger_MintAndOwnership(t *testing.T) {
	l := NewMemLedger()

	require.NoError(t, l.Mint(alice, 1))
	assert.ErrorIs(t, l.Mint(bob, 1), ErrTokenExists)
	assert.ErrorIs(t, l.Mint(funds.NullAddress, 2), funds.ErrNullAddress)

	owner, err := l.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	_, err = l.OwnerOf(99)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMemLedger_Transfer(t *testing.T) {
	l := NewMemLedger()
	require.NoError(t, l.Mint(alice, 1))

	assert.ErrorIs(t, l.Transfer(bob, carol, 1), ErrNotOwner)
	assert.ErrorIs(t, l.Transfer(alice, bob, 2), ErrUnknownToken)

	require.NoError(t, l.Transfer(alice, bob, 1))
	owner, _ := l.OwnerOf(1)
	assert.Equal(t, bob, owner)
}

func TestMemLedger_Burn(t *testing.T) {
	l := NewMemLedger()
	require.NoError(t, l.Mint(alice, 1))

	assert.ErrorIs(t, l.Burn(bob, 1), ErrNotOwner)
	assert.ErrorIs(t, l.Burn(alice, 2), ErrUnknownToken)

	require.NoError(t, l.Burn(alice, 1))
	_, err := l.OwnerOf(1)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMemLedger_Approvals(t *testing.T) {
	l := NewMemLedger()
	require.NoError(t, l.Mint(alice, 1))

	assert.ErrorIs(t, l.Approve(bob, carol, 1), ErrNotOwner)
	require.NoError(t, l.Approve(alice, carol, 1))

	approved, err := l.GetApproved(1)
	require.NoError(t, err)
	assert.Equal(t, carol, approved)

	// Transfer clears the per-token approval.
	require.NoError(t, l.Transfer(alice, bob, 1))
	approved, err = l.GetApproved(1)
	require.NoError(t, err)
	assert.True(t, approved.IsNull())
}

func TestMemLedger_OperatorApproval(t *testing.T) {
	l := NewMemLedger()

	ok, err := l.IsApprovedForAll(alice, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.SetApprovalForAll(alice, carol, true))
	ok, _ = l.IsApprovedForAll(alice, carol)
	assert.True(t, ok)

	require.NoError(t, l.SetApprovalForAll(alice, carol, false))
	ok, _ = l.IsApprovedForAll(alice, carol)
	assert.False(t, ok)
}
