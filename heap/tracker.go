package heap

import "github.com/dolthub/swiss"

type trackedAlloc struct {
	Size int
	Core int
}

// allocTracker is an observational table of live allocations keyed by address.
// It exists purely for diagnostics and dumps; the allocator's behavior never
// depends on it, and a nil tracker turns every method into a no-op.
type allocTracker struct {
	live *swiss.Map[uintptr, trackedAlloc]
}

func newAllocTracker() *allocTracker {
	return &allocTracker{
		live: swiss.NewMap[uintptr, trackedAlloc](64),
	}
}

func (t *allocTracker) recordAlloc(addr uintptr, size int, core int) {
	if t == nil {
		return
	}
	t.live.Put(addr, trackedAlloc{Size: size, Core: core})
}

// recordFree removes addr from the live table, reporting whether it was there.
func (t *allocTracker) recordFree(addr uintptr) bool {
	if t == nil {
		return true
	}
	return t.live.Delete(addr)
}

func (t *allocTracker) liveCount() int {
	if t == nil {
		return 0
	}
	return t.live.Count()
}
