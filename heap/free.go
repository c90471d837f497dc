package heap

import (
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/dspkit/blockheap/memutils"
)

// freeUnlocked releases the allocation owning ptr. The gate must be held.
func (m *MemoryMap) freeUnlocked(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr := uintptr(m.platform.PrepareFree(ptr))
	core := m.platform.CurrentCore()

	// The system zone is allocate-only. A free aimed at it is a logic error at
	// the call site, and releasing it would hand out memory the drivers on
	// this core still own.
	if m.system[core].region.Contains(addr) {
		m.fault("attempt to free system zone memory",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("core", core))
	}

	m.releaseBlock(addr, core)
	m.markDirtyUnlocked()
}

// findHeapForAddr locates the heap owning addr: the calling core's
// system-runtime heap first, then the shared runtime heaps, then the shared
// buffer heaps.
func (m *MemoryMap) findHeapForAddr(addr uintptr, core int) *ZoneHeap {
	if h := m.systemRuntime[core]; h.region.Contains(addr) {
		return h
	}
	for _, h := range m.runtime {
		if h.region.Contains(addr) {
			return h
		}
	}
	for _, h := range m.buffer {
		if h.region.Contains(addr) {
			return h
		}
	}

	return nil
}

func (m *MemoryMap) releaseBlock(addr uintptr, core int) {
	h := m.findHeapForAddr(addr, core)
	if h == nil {
		m.logger.Error("free of an address no heap owns",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("core", core))
		return
	}

	bm := h.mapFor(addr)
	if bm == nil {
		// A heap owns the address but no map does. That means corrupted state,
		// but abandoning one free beats halting every core.
		m.logger.Error("free of an address no block map owns",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("core", core))
		return
	}

	block := bm.blockIndex(addr)
	desc := &bm.blocks[block]

	// Every block of a live span stores the span's block-boundary start
	// address, so a padded pointer, or one into any block of the span,
	// resolves back to the whole allocation.
	if desc.unaligned != 0 && desc.unaligned != addr {
		addr = desc.unaligned
		block = bm.blockIndex(addr)
		desc = &bm.blocks[block]
	}

	if bm.blockAddr(block) != addr {
		m.fault("freed pointer does not resolve to a block boundary",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("block", block),
			slog.Int("blockSize", bm.blockSize))
	}

	switch desc.state {
	case blockFree:
		m.logger.Error("double free detected",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("block", block),
			slog.Bool("freePatternIntact", memutils.ValidateFreePattern(unsafe.Pointer(addr), bm.blockSize)))
		return
	case blockSpanCont:
		// Unreachable unless a descriptor lost its span-start address.
		m.logger.Error("free resolved to a span continuation block",
			slog.Uint64("addr", uint64(addr)),
			slog.Int("block", block))
		return
	}

	released := bm.releaseSpan(block)
	h.used -= released * bm.blockSize
	h.free += released * bm.blockSize

	memutils.DebugValidate(bm)
	memutils.WriteFreePattern(unsafe.Pointer(addr), released*bm.blockSize)

	if m.tracker != nil && !m.tracker.recordFree(addr) {
		m.logger.Warn("freed pointer was not in the live-allocation table",
			slog.Uint64("addr", uint64(addr)))
	}

	m.publishMap(bm)
	m.publishHeap(h)
}

// usableSizeUnlocked returns the bytes reachable from ptr within its owning
// span, or 0 when the pointer cannot be resolved. Reallocate uses it to bound
// the copy into the replacement allocation.
func (m *MemoryMap) usableSizeUnlocked(ptr unsafe.Pointer) int {
	addr := uintptr(m.platform.PrepareFree(ptr))

	h := m.findHeapForAddr(addr, m.platform.CurrentCore())
	if h == nil {
		return 0
	}
	bm := h.mapFor(addr)
	if bm == nil {
		return 0
	}

	block := bm.blockIndex(addr)
	desc := bm.blocks[block]
	if desc.unaligned != 0 && desc.unaligned != addr {
		block = bm.blockIndex(desc.unaligned)
		desc = bm.blocks[block]
	}
	if desc.state != blockSpanStart {
		return 0
	}

	spanEnd := bm.blockAddr(block) + uintptr(desc.span*bm.blockSize)
	return int(spanEnd - addr)
}
