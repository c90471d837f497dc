// Package heap implements the block-map based zone heap allocator of a
// signal-processing firmware image: a statically laid out physical region is
// partitioned into system, system-runtime, runtime, and buffer zones, and
// allocation, free, and reallocate requests are served from fixed size-class
// block maps under one global gate shared by every core.
package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/dspkit/blockheap/heap/internal/utils"
	"github.com/dspkit/blockheap/internal/arena"
	"github.com/dspkit/blockheap/memutils"
)

// CreateOptions carries the collaborators and switches a MemoryMap is built
// with. The zero value selects a single-core image with default logging.
type CreateOptions struct {
	// Logger receives allocator diagnostics. Nil selects slog.Default().
	Logger *slog.Logger
	// Platform supplies core identity and the coherency hooks. Nil selects
	// StaticPlatform on core 0.
	Platform Platform
	// SingleCore disables gate serialization for images where the execution
	// model already provides exclusion.
	SingleCore bool
	// TrackAllocations enables the observational live-allocation tracker used
	// by diagnostics. It never alters allocation behavior.
	TrackAllocations bool
}

// MemoryMap owns every zone heap of the firmware image. It is constructed once
// at process start and the same handle is shared by all cores; all mutation is
// serialized by one gate that stands in for the interrupt-masking spinlock of
// the target hardware.
type MemoryMap struct {
	gate     utils.ExclusiveGate
	logger   *slog.Logger
	platform Platform

	backing *arena.Arena
	region  Region

	cacheAlign  uint
	primaryCore int

	system        []*ZoneHeap
	systemRuntime []*ZoneHeap
	runtime       []*ZoneHeap
	buffer        []*ZoneHeap

	// traceDirty records that heap state changed since the last trace.
	traceDirty bool

	tracker *allocTracker
}

// NewMemoryMap validates the layout, reserves the backing region, and lays the
// zone heaps out over it. The heaps are never reallocated, resized, or
// destroyed afterward; only counters and block descriptors mutate.
func NewMemoryMap(layout Layout, options CreateOptions) (*MemoryMap, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}

	backing, err := arena.Reserve(layout.totalSize(), layout.cacheAlign())
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	platform := options.Platform
	if platform == nil {
		platform = StaticPlatform{}
	}

	m := &MemoryMap{
		gate:        utils.ExclusiveGate{Serialize: !options.SingleCore},
		logger:      logger,
		platform:    platform,
		backing:     backing,
		cacheAlign:  layout.cacheAlign(),
		primaryCore: layout.PrimaryCore,
	}

	base := uintptr(unsafe.Pointer(&backing.Bytes()[0]))
	m.region = makeRegion(base, layout.totalSize())

	next := base
	m.system, next = buildHeaps(layout.System, next)
	m.systemRuntime, next = buildHeaps(layout.SystemRuntime, next)
	m.runtime, next = buildHeaps(layout.Runtime, next)
	m.buffer, next = buildHeaps(layout.Buffer, next)

	if memutils.FreePatternEnabled {
		for _, heaps := range [][]*ZoneHeap{m.systemRuntime, m.runtime, m.buffer} {
			for _, h := range heaps {
				memutils.WriteFreePattern(unsafe.Pointer(h.region.base), h.region.size)
			}
		}
	}

	if options.TrackAllocations {
		m.tracker = newAllocTracker()
	}

	return m, nil
}

// Region returns the whole backing address range of the memory map.
func (m *MemoryMap) Region() Region { return m.region }

// CacheAlign returns the implicit alignment applied to zone allocations.
func (m *MemoryMap) CacheAlign() uint { return m.cacheAlign }

// Allocate serves a request from the given zone. It returns nil when no space
// or no capability-matching heap exists in a freeable shared zone; system-zone
// exhaustion, capability mismatch on a per-core zone, and an invalid zone are
// fatal. The returned pointer is aligned to the cache line size.
func (m *MemoryMap) Allocate(zone Zone, caps Caps, flags AllocFlags, size int) unsafe.Pointer {
	m.gate.Lock()
	ptr := m.allocateUnlocked(zone, caps, flags, size)
	m.gate.Unlock()

	if ptr == nil {
		m.traceAllocFailure(zone, caps, flags, size)
	}
	return ptr
}

// AllocateZeroed behaves as Allocate with the returned memory zero-filled.
func (m *MemoryMap) AllocateZeroed(zone Zone, caps Caps, flags AllocFlags, size int) unsafe.Pointer {
	ptr := m.Allocate(zone, caps, flags, size)
	if ptr != nil {
		zeroRegion(ptr, size)
	}
	return ptr
}

// AllocateAligned serves a buffer-zone request with an explicit alignment,
// which must be zero or a power of two. This is the only path that may place a
// request across a contiguous span of blocks.
func (m *MemoryMap) AllocateAligned(caps Caps, flags AllocFlags, size int, alignment uint) unsafe.Pointer {
	m.gate.Lock()
	ptr := m.allocBuffer(caps, flags, size, alignment)
	if memutils.FreePatternEnabled && ptr != nil {
		zeroRegion(ptr, size)
	}
	m.markDirtyUnlocked()
	m.gate.Unlock()

	if ptr == nil {
		m.traceAllocFailure(ZoneBuffer, caps, flags, size)
	}
	return ptr
}

// AllocateSystemZeroed takes zeroed system-zone memory on behalf of the given
// core, bypassing the capability check. It exists for boot-time setup of
// secondary cores' bookkeeping.
func (m *MemoryMap) AllocateSystemZeroed(core int, size int) unsafe.Pointer {
	m.gate.Lock()
	ptr := m.allocSystem(0, 0, core, size)
	if ptr != nil {
		zeroRegion(ptr, size)
	}
	m.markDirtyUnlocked()
	m.gate.Unlock()

	return ptr
}

// Free releases an allocation previously returned by any allocate call. A nil
// pointer is a no-op. A pointer belonging to no heap is logged and abandoned;
// a pointer inside the calling core's system zone, or one that resolves off a
// block boundary, is fatal.
func (m *MemoryMap) Free(ptr unsafe.Pointer) {
	m.gate.Lock()
	m.freeUnlocked(ptr)
	m.gate.Unlock()
}

// ResetSystemZone resets the calling core's system-zone usage counters so the
// core can be re-initialized. Only a non-primary core may do this, and only to
// its own heap; the layout itself is never touched. Misuse is fatal.
func (m *MemoryMap) ResetSystemZone() {
	m.gate.Lock()
	defer m.gate.Unlock()

	core := m.platform.CurrentCore()
	if core == m.primaryCore {
		m.fault("system zone reset attempted on the primary core", slog.Int("core", core))
	}

	h := m.system[core]
	h.used = 0
	h.free = h.region.size

	m.publishHeap(h)
	m.publishSelf()
}

// Validate checks every heap in the map. It is meant for tests and post-mortem
// diagnosis; a healthy allocator cannot fail it.
func (m *MemoryMap) Validate() error {
	m.gate.Lock()
	defer m.gate.Unlock()

	for _, heaps := range [][]*ZoneHeap{m.system, m.systemRuntime, m.runtime, m.buffer} {
		for _, h := range heaps {
			if err := h.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CalculateStatistics folds the current state of every heap into stats.
func (m *MemoryMap) CalculateStatistics(stats *memutils.Statistics) {
	m.gate.Lock()
	defer m.gate.Unlock()

	for _, heaps := range [][]*ZoneHeap{m.system, m.systemRuntime, m.runtime, m.buffer} {
		for _, h := range heaps {
			h.addStatistics(stats)
		}
	}
}

// CalculateDetailedStatistics folds per-size-class extremes of every heap into
// stats. It walks all block descriptors; keep it out of hot paths.
func (m *MemoryMap) CalculateDetailedStatistics(stats *memutils.DetailedStatistics) {
	m.gate.Lock()
	defer m.gate.Unlock()

	for _, heaps := range [][]*ZoneHeap{m.system, m.systemRuntime, m.runtime, m.buffer} {
		for _, h := range heaps {
			h.addDetailedStatistics(stats)
		}
	}
}

// markDirtyUnlocked flags that heap state changed and republishes the map.
func (m *MemoryMap) markDirtyUnlocked() {
	m.traceDirty = true
	m.publishSelf()
}

// fault reports a non-recoverable condition and halts. Continuing past any of
// these states would corrupt shared memory, so they are not errors to handle.
func (m *MemoryMap) fault(msg string, args ...any) {
	m.logger.Error(msg, args...)
	panic(fmt.Sprintf("blockheap: %s", msg))
}

func (m *MemoryMap) checkAlignment(alignment uint) uint {
	if err := memutils.CheckPow2(alignment, "alignment"); err != nil {
		m.fault("alignment must be a power of two", slog.Uint64("alignment", uint64(alignment)))
	}
	if alignment == 0 {
		return 1
	}
	return alignment
}

func (m *MemoryMap) publishSelf() {
	m.platform.Publish(unsafe.Pointer(m), int(unsafe.Sizeof(*m)))
}

func (m *MemoryMap) publishHeap(h *ZoneHeap) {
	m.platform.Publish(unsafe.Pointer(h), int(unsafe.Sizeof(*h)))
}

func (m *MemoryMap) publishMap(bm *BlockMap) {
	if bm.count > 0 {
		m.platform.Publish(unsafe.Pointer(&bm.blocks[0]), bm.count*int(unsafe.Sizeof(bm.blocks[0])))
	}
	m.platform.Publish(unsafe.Pointer(bm), int(unsafe.Sizeof(*bm)))
}

func zeroRegion(ptr unsafe.Pointer, size int) {
	region := unsafe.Slice((*byte)(ptr), size)
	for i := range region {
		region[i] = 0
	}
}
