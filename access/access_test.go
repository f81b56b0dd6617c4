package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitnsorg/libbitns-go/funds"
)

func TestTable(t *testing.T) {
	tbl := NewTable()
	op := funds.Address("operator")

	assert.False(t, tbl.Has("admin", op))
	assert.ErrorIs(t, tbl.Require("admin", op), ErrPermissionDenied)

	tbl.Grant("admin", op)
	assert.True(t, tbl.Has("admin", op))
	assert.NoError(t, tbl.Require("admin", op))

	// Permissions are independent.
	assert.False(t, tbl.Has("settler", op))

	tbl.Revoke("admin", op)
	assert.False(t, tbl.Has("admin", op))
}

func TestTable_NullSubject(t *testing.T) {
	tbl := NewTable()
	tbl.Grant("admin", funds.NullAddress)
	assert.False(t, tbl.Has("admin", funds.NullAddress))
}
