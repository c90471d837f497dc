package heap

import (
	"unsafe"

	"github.com/dspkit/blockheap/memutils"
)

// Reallocate replaces an allocation with one of a new size from the given
// zone, copying min(old, new) bytes. It never resizes in place. When the new
// allocation cannot be made, the old pointer stays valid and nil is returned,
// so callers never lose data to an out-of-memory condition. A zero size
// returns nil without touching the old allocation.
func (m *MemoryMap) Reallocate(ptr unsafe.Pointer, zone Zone, caps Caps, flags AllocFlags, size int) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	// One critical section around allocate+copy+free makes the replacement
	// atomic from the other cores' point of view.
	m.gate.Lock()
	newPtr := m.allocateUnlocked(zone, caps, flags, size)
	m.replaceUnlocked(ptr, newPtr, size)
	m.gate.Unlock()

	if newPtr == nil {
		m.traceAllocFailure(zone, caps, flags, size)
	}
	return newPtr
}

// ReallocateAligned is Reallocate for the buffer zone with an explicit
// alignment, analogous to AllocateAligned.
func (m *MemoryMap) ReallocateAligned(ptr unsafe.Pointer, caps Caps, flags AllocFlags, size int, alignment uint) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	m.gate.Lock()
	newPtr := m.allocBuffer(caps, flags, size, alignment)
	if memutils.FreePatternEnabled && newPtr != nil {
		zeroRegion(newPtr, size)
	}
	m.replaceUnlocked(ptr, newPtr, size)
	m.markDirtyUnlocked()
	m.gate.Unlock()

	if newPtr == nil {
		m.traceAllocFailure(ZoneBuffer, caps, flags, size)
	}
	return newPtr
}

func (m *MemoryMap) replaceUnlocked(oldPtr, newPtr unsafe.Pointer, size int) {
	if newPtr == nil {
		return
	}

	if oldPtr != nil {
		n := m.usableSizeUnlocked(oldPtr)
		if size < n {
			n = size
		}
		if n > 0 {
			copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(oldPtr), n))
		}
	}

	m.freeUnlocked(oldPtr)
}
