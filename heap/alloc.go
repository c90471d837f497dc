package heap

import (
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/dspkit/blockheap/memutils"
)

// allocateUnlocked dispatches a request by zone. The gate must be held.
func (m *MemoryMap) allocateUnlocked(zone Zone, caps Caps, flags AllocFlags, size int) unsafe.Pointer {
	var ptr unsafe.Pointer

	switch zone {
	case ZoneSystem:
		ptr = m.allocSystem(caps, flags, m.platform.CurrentCore(), size)
	case ZoneSystemRuntime:
		ptr = m.allocSystemRuntime(caps, flags, m.platform.CurrentCore(), size)
	case ZoneRuntime:
		ptr = m.allocRuntime(caps, flags, size)
	case ZoneBuffer:
		ptr = m.allocBuffer(caps, flags, size, m.cacheAlign)
	default:
		m.fault("invalid memory zone", slog.Uint64("zone", uint64(zone)))
	}

	// Pattern-filling builds must not hand the fill back to the caller.
	if memutils.FreePatternEnabled && ptr != nil {
		zeroRegion(ptr, size)
	}

	m.markDirtyUnlocked()
	return ptr
}

// allocSystem bumps the given core's system heap. The system zone either
// satisfies the request or the image is mis-sized, so failure is fatal.
func (m *MemoryMap) allocSystem(caps Caps, flags AllocFlags, core int, size int) unsafe.Pointer {
	h := m.system[core]
	if !h.caps.Satisfies(caps) {
		m.fault("system heap capabilities do not cover the request",
			slog.Int("core", core),
			slog.String("heapCaps", h.caps.String()),
			slog.String("requestCaps", caps.String()))
	}

	// Keep every returned address on a cache line boundary.
	aligned := memutils.AlignUp(h.used, m.cacheAlign)
	padding := aligned - h.used

	if padding+size > h.free {
		m.fault("system heap exhausted",
			slog.Int("core", core),
			slog.Int("bytes", size),
			slog.Int("free", h.free))
	}

	h.used = aligned
	ptr := unsafe.Pointer(h.region.base + uintptr(h.used))
	h.used += size
	h.free -= padding + size

	m.tracker.recordAlloc(uintptr(ptr), size, core)

	if flags&FlagShared != 0 {
		ptr = m.platform.SharedAlias(ptr, size)
	}

	m.publishHeap(h)
	m.publishSelf()

	return ptr
}

// allocSystemRuntime serves a single-block request from the given core's
// system-runtime heap. A capability mismatch on a per-core heap is a layout
// error and fatal; running out of space is not.
func (m *MemoryMap) allocSystemRuntime(caps Caps, flags AllocFlags, core int, size int) unsafe.Pointer {
	h := m.systemRuntime[core]
	if !h.caps.Satisfies(caps) {
		m.fault("system-runtime heap capabilities do not cover the request",
			slog.Int("core", core),
			slog.String("heapCaps", h.caps.String()),
			slog.String("requestCaps", caps.String()))
	}

	return m.allocFromHeap(h, flags, size, m.cacheAlign)
}

// allocRuntime serves a single-block request from the first runtime heap whose
// capabilities cover the request, falling back to the buffer heaps.
func (m *MemoryMap) allocRuntime(caps Caps, flags AllocFlags, size int) unsafe.Pointer {
	h := findHeapByCaps(m.runtime, caps)
	if h == nil {
		h = findHeapByCaps(m.buffer, caps)
	}
	if h == nil {
		m.logger.Error("no heap matches the requested capabilities",
			slog.String("caps", caps.String()),
			slog.Int("bytes", size))
		return nil
	}

	return m.allocFromHeap(h, flags, size, m.cacheAlign)
}

// findHeapByCaps returns the first heap whose capability mask is a superset of
// the request.
func findHeapByCaps(heaps []*ZoneHeap, caps Caps) *ZoneHeap {
	for _, h := range heaps {
		if h.caps.Satisfies(caps) {
			return h
		}
	}
	return nil
}

// allocFromHeap places a request in the first block map big enough for it.
// When the block at the cursor is not already aligned, the size-fit check is
// made against the request inflated by one alignment unit, since padding will
// consume part of the block. The block at the cursor is taken unconditionally.
func (m *MemoryMap) allocFromHeap(h *ZoneHeap, flags AllocFlags, size int, alignment uint) unsafe.Pointer {
	alignment = m.checkAlignment(alignment)

	for _, bm := range h.maps {
		need := size
		if alignment > 1 && !memutils.PointerAligned(bm.blockAddr(bm.firstFree), alignment) {
			need += int(alignment)
		}

		if bm.blockSize < need || bm.freeCount == 0 {
			continue
		}

		// The tracker keys by the block-boundary address; Free reconciles its
		// pointer back to the same address before deleting.
		unaligned := bm.blockAddr(bm.firstFree)
		addr := bm.allocBlock(alignment)
		h.used += bm.blockSize
		h.free -= bm.blockSize

		memutils.DebugValidate(bm)
		m.publishMap(bm)
		m.publishHeap(h)

		ptr := unsafe.Pointer(addr)
		if flags&FlagShared != 0 {
			ptr = m.platform.SharedAlias(ptr, size)
		}

		m.tracker.recordAlloc(unaligned, size, m.platform.CurrentCore())
		return ptr
	}

	return nil
}

// allocBuffer walks the buffer heaps by capability, trying a single block in
// each before resorting to a contiguous span.
func (m *MemoryMap) allocBuffer(caps Caps, flags AllocFlags, size int, alignment uint) unsafe.Pointer {
	alignment = m.checkAlignment(alignment)

	matched := false
	for _, h := range m.buffer {
		if !h.caps.Satisfies(caps) {
			continue
		}
		matched = true

		if ptr := m.allocHeapBuffer(h, flags, size, alignment); ptr != nil {
			return ptr
		}
	}

	if !matched {
		m.logger.Error("no buffer heap matches the requested capabilities",
			slog.String("caps", caps.String()),
			slog.Int("bytes", size))
	}
	return nil
}

func (m *MemoryMap) allocHeapBuffer(h *ZoneHeap, flags AllocFlags, size int, alignment uint) unsafe.Pointer {
	if ptr := m.allocFromHeap(h, flags, size, alignment); ptr != nil {
		return ptr
	}

	// No single block fits. A span crosses block boundaries, so reserve the
	// worst-case padding up front when the caller wants real alignment.
	bytes := size
	if alignment > 1 {
		bytes += int(alignment)
	}
	if h.region.size < bytes {
		return nil
	}

	// Try the largest block size first; anything at least as large as the
	// request would already have succeeded as a single block.
	for i := len(h.maps) - 1; i >= 0; i-- {
		bm := h.maps[i]
		if bm.blockSize >= bytes {
			continue
		}

		if ptr := m.allocSpan(h, bm, flags, bytes, alignment, size); ptr != nil {
			return ptr
		}
	}

	return nil
}

// allocSpan satisfies bytes with a first-fit run of contiguous blocks in bm.
func (m *MemoryMap) allocSpan(h *ZoneHeap, bm *BlockMap, flags AllocFlags, bytes int, alignment uint, size int) unsafe.Pointer {
	needed := bytes / bm.blockSize
	if bytes%bm.blockSize != 0 {
		needed++
	}
	if needed > bm.count {
		return nil
	}

	start, run, ok := bm.findRun(needed)
	if !ok {
		m.logger.Error("not enough contiguous blocks for the request",
			slog.Int("blocksNeeded", needed),
			slog.Int("blocksRemaining", run),
			slog.Int("blockSize", bm.blockSize))
		return nil
	}

	unaligned := bm.blockAddr(start)
	addr := bm.allocRun(start, needed, alignment)
	h.used += needed * bm.blockSize
	h.free -= needed * bm.blockSize

	memutils.DebugValidate(bm)
	m.publishMap(bm)
	m.publishHeap(h)

	ptr := unsafe.Pointer(addr)
	if flags&FlagShared != 0 {
		ptr = m.platform.SharedAlias(ptr, size)
	}

	m.tracker.recordAlloc(unaligned, size, m.platform.CurrentCore())
	return ptr
}
