package heap

import (
	cerrors "github.com/cockroachdb/errors"

	"github.com/dspkit/blockheap/memutils"
)

const defaultCacheAlign = 64

// BlockSpec describes one size class within a heap: Count blocks of BlockSize
// bytes each.
type BlockSpec struct {
	BlockSize int
	Count     int
}

// HeapSpec describes one heap instance. For heaps with block maps, Size may be
// left zero to derive it from the block specs; when both are given they must
// agree, since the maps tile the heap region exactly.
type HeapSpec struct {
	Size   int
	Caps   Caps
	Blocks []BlockSpec
}

func (s *HeapSpec) derivedSize() int {
	size := 0
	for _, b := range s.Blocks {
		size += b.BlockSize * b.Count
	}
	return size
}

func (s *HeapSpec) validate() error {
	lastBlockSize := 0
	for i, b := range s.Blocks {
		if b.BlockSize <= 0 || b.Count <= 0 {
			return cerrors.Newf("block spec %d has block size %d and count %d; both must be positive", i, b.BlockSize, b.Count)
		}
		if b.BlockSize <= lastBlockSize {
			return cerrors.Newf("block spec %d has block size %d, which does not increase over %d", i, b.BlockSize, lastBlockSize)
		}
		lastBlockSize = b.BlockSize
	}

	derived := s.derivedSize()
	switch {
	case len(s.Blocks) == 0 && s.Size <= 0:
		return cerrors.New("a heap without block maps needs an explicit positive size")
	case len(s.Blocks) > 0 && s.Size != 0 && s.Size != derived:
		return cerrors.Newf("heap size %d disagrees with the %d bytes its block maps tile", s.Size, derived)
	}

	return nil
}

func (s *HeapSpec) regionSize() int {
	if len(s.Blocks) == 0 {
		return s.Size
	}
	return s.derivedSize()
}

// Layout is the build-time memory-layout description: which zones exist, their
// heap instances, sizes, capability masks, and size classes. It is consumed as
// fixed configuration; nothing in it is computed at runtime.
type Layout struct {
	// Cores is the number of processing cores sharing the memory map.
	Cores int
	// PrimaryCore is the boot core; it may never reset its system zone.
	PrimaryCore int
	// CacheAlign is the data-cache line size, used as the implicit alignment of
	// every zone allocation. Zero selects the default of 64.
	CacheAlign uint

	// System holds the allocate-only heap of each core, indexed by core.
	System []HeapSpec
	// SystemRuntime holds the freeable core-local heap of each core.
	SystemRuntime []HeapSpec
	// Runtime holds the shared general-purpose heaps.
	Runtime []HeapSpec
	// Buffer holds the shared heaps that also serve multi-block spans.
	Buffer []HeapSpec
}

func (l *Layout) cacheAlign() uint {
	if l.CacheAlign == 0 {
		return defaultCacheAlign
	}
	return l.CacheAlign
}

func (l *Layout) validate() error {
	if l.Cores < 1 {
		return cerrors.Newf("layout needs at least one core, not %d", l.Cores)
	}
	if l.PrimaryCore < 0 || l.PrimaryCore >= l.Cores {
		return cerrors.Newf("primary core %d is out of range for %d cores", l.PrimaryCore, l.Cores)
	}
	if err := memutils.CheckPow2(l.cacheAlign(), "cache alignment"); err != nil {
		return err
	}

	if len(l.System) != l.Cores {
		return cerrors.Newf("layout has %d system heaps for %d cores", len(l.System), l.Cores)
	}
	if len(l.SystemRuntime) != l.Cores {
		return cerrors.Newf("layout has %d system-runtime heaps for %d cores", len(l.SystemRuntime), l.Cores)
	}

	for zone, specs := range map[Zone][]HeapSpec{
		ZoneSystem:        l.System,
		ZoneSystemRuntime: l.SystemRuntime,
		ZoneRuntime:       l.Runtime,
		ZoneBuffer:        l.Buffer,
	} {
		for i := range specs {
			spec := &specs[i]
			if zone == ZoneSystem && len(spec.Blocks) > 0 {
				return cerrors.Newf("system heap %d carries block maps; the system zone is a plain bump region", i)
			}
			if zone != ZoneSystem && len(spec.Blocks) == 0 {
				return cerrors.Newf("%s heap %d has no block maps", zone, i)
			}
			if err := spec.validate(); err != nil {
				return cerrors.Wrapf(err, "%s heap %d", zone, i)
			}
		}
	}

	return nil
}

// totalSize returns the bytes of backing region the whole layout needs.
func (l *Layout) totalSize() int {
	total := 0
	for _, specs := range [][]HeapSpec{l.System, l.SystemRuntime, l.Runtime, l.Buffer} {
		for i := range specs {
			total += specs[i].regionSize()
		}
	}
	return total
}

// buildHeaps lays the layout's heaps out over the backing region starting at
// base. Heaps and maps are assigned their regions exactly once here and never
// move afterward. Map bases chain: map[i] begins where map[i-1] ends.
func buildHeaps(specs []HeapSpec, next uintptr) ([]*ZoneHeap, uintptr) {
	heaps := make([]*ZoneHeap, 0, len(specs))

	for i := range specs {
		spec := &specs[i]
		size := spec.regionSize()

		h := &ZoneHeap{
			region: makeRegion(next, size),
			caps:   spec.Caps,
			free:   size,
			maps:   make([]*BlockMap, 0, len(spec.Blocks)),
		}

		mapBase := next
		for _, b := range spec.Blocks {
			mapSize := b.BlockSize * b.Count
			h.maps = append(h.maps, newBlockMap(makeRegion(mapBase, mapSize), b.BlockSize, b.Count))
			mapBase += uintptr(mapSize)
		}

		heaps = append(heaps, h)
		next += uintptr(size)
	}

	return heaps, next
}
