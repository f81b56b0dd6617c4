package funds

import "sync/atomic"

// Guard is a non-blocking reentrancy lock. Every settlement operation that
// performs an external transfer enters its component's guard first; a nested
// call arriving through a receiver hook while the guard is held fails fast
// with ErrReentrantCall instead of deadlocking or double-executing.
//
// The zero value is ready to use.
type Guard struct {
	busy atomic.Bool
}

// Enter acquires the guard, or fails with ErrReentrantCall if it is held.
func (g *Guard) Enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard. Callers pair it with Enter via defer.
func (g *Guard) Exit() {
	g.busy.Store(false)
}
