// Package access implements capability-style authorization as an explicit
// table of (permission, subject) grants. Every mutating settlement operation
// consults its component's table before touching state; there is no implicit
// ownership hierarchy.
package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bitnsorg/libbitns-go/funds"
)

// ErrPermissionDenied indicates the subject does not hold the permission.
var ErrPermissionDenied = errors.New("access: permission denied")

// Table maps permissions to the set of subjects holding them. The zero value
// is not usable; construct with NewTable.
type Table struct {
	mu     sync.RWMutex
	grants map[string]map[funds.Address]bool
}

// NewTable creates an empty authorization table.
func NewTable() *Table {
	return &Table{grants: make(map[string]map[funds.Address]bool)}
}

// Grant gives subject the permission. Granting twice is a no-op.
func (t *Table) Grant(perm string, subject funds.Address) {
	if subject.IsNull() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	subjects, ok := t.grants[perm]
	if !ok {
		subjects = make(map[funds.Address]bool)
		t.grants[perm] = subjects
	}
	subjects[subject] = true
}

// Revoke removes the permission from subject.
func (t *Table) Revoke(perm string, subject funds.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants[perm], subject)
}

// Has reports whether subject holds the permission.
func (t *Table) Has(perm string, subject funds.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.grants[perm][subject]
}

// Require fails with ErrPermissionDenied unless subject holds the permission.
func (t *Table) Require(perm string, subject funds.Address) error {
	if !t.Has(perm, subject) {
		return fmt.Errorf("%w: %s lacks %q", ErrPermissionDenied, subject, perm)
	}
	return nil
}
