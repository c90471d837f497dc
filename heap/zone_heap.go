package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/dspkit/blockheap/memutils"
)

// ZoneHeap is one heap instance inside a zone: a fixed backing region, a
// capability mask, aggregate usage counters, and an ordered list of block maps
// of strictly increasing block size that tile the region exactly. System-zone
// heaps carry no maps; they only bump their counters.
type ZoneHeap struct {
	region Region
	caps   Caps

	used int
	free int

	maps []*BlockMap
}

// Region returns the heap's backing address range.
func (h *ZoneHeap) Region() Region { return h.region }

// Caps returns the heap's capability mask.
func (h *ZoneHeap) Caps() Caps { return h.caps }

// Used returns the bytes currently allocated from the heap.
func (h *ZoneHeap) Used() int { return h.used }

// Free returns the bytes currently available in the heap.
func (h *ZoneHeap) Free() int { return h.free }

// BlockMapCount returns the number of size classes in the heap.
func (h *ZoneHeap) BlockMapCount() int { return len(h.maps) }

// mapFor returns the block map owning addr, or nil when the address falls
// outside every map. Maps tile the region, so the first map whose end lies
// past the address is the owner.
func (h *ZoneHeap) mapFor(addr uintptr) *BlockMap {
	for _, bm := range h.maps {
		if addr < bm.region.End() {
			if addr < bm.region.base {
				return nil
			}
			return bm
		}
	}

	return nil
}

// Validate performs internal consistency checks on the heap and every map in
// it. When the allocator is functioning correctly it cannot return an error.
func (h *ZoneHeap) Validate() error {
	if h.used+h.free != h.region.size {
		return cerrors.Newf("used %d + free %d does not equal the heap size %d", h.used, h.free, h.region.size)
	}

	next := h.region.base
	lastBlockSize := 0
	for i, bm := range h.maps {
		if bm.region.base != next {
			return cerrors.Newf("map %d starts at %#x, expected %#x; maps must tile the heap", i, bm.region.base, next)
		}
		if bm.blockSize <= lastBlockSize {
			return cerrors.Newf("map %d block size %d does not increase over the previous %d", i, bm.blockSize, lastBlockSize)
		}

		if err := bm.Validate(); err != nil {
			return cerrors.Wrapf(err, "map %d", i)
		}

		lastBlockSize = bm.blockSize
		next = bm.region.End()
	}

	if len(h.maps) > 0 && next != h.region.End() {
		return cerrors.Newf("maps end at %#x but the heap ends at %#x", next, h.region.End())
	}

	return nil
}

var _ memutils.Validatable = &ZoneHeap{}

func (h *ZoneHeap) addStatistics(stats *memutils.Statistics) {
	stats.HeapCount++
	stats.BlockMapCount += len(h.maps)
	stats.UsedBytes += h.used
	stats.FreeBytes += h.free

	for _, bm := range h.maps {
		stats.AllocationCount += bm.spanCount()
	}
}

func (h *ZoneHeap) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.HeapCount++
	stats.UsedBytes += h.used
	stats.FreeBytes += h.free

	for _, bm := range h.maps {
		stats.AllocationCount += bm.spanCount()
		bm.addDetailedStatistics(stats)
	}
}

func (h *ZoneHeap) writeJson(json *jwriter.ObjectState, detailed bool) {
	json.Name("Base").Int(int(h.region.base))
	json.Name("Size").Int(h.region.size)
	json.Name("Caps").String(h.caps.String())
	json.Name("Used").Int(h.used)
	json.Name("Free").Int(h.free)

	maps := json.Name("BlockMaps").Array()
	for _, bm := range h.maps {
		mapObj := maps.Object()
		bm.writeJson(&mapObj, detailed)
		mapObj.End()
	}
	maps.End()
}
