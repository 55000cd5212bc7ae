package zstack

import "sync/atomic"

// transactionID hands out AF transaction ids 1..255. Zero is never used.
type transactionID struct {
	last atomic.Uint32
}

func (t *transactionID) next() uint8 {
	for {
		old := t.last.Load()
		n := old%255 + 1
		if t.last.CompareAndSwap(old, n) {
			return uint8(n)
		}
	}
}
