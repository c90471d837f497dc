package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/dspkit/blockheap/memutils"
)

type blockState uint8

const (
	// blockFree marks a block holding no allocation.
	blockFree blockState = iota
	// blockSpanStart marks the first block of an allocation. The descriptor
	// carries the span length and the unaligned address handed to the engine.
	blockSpanStart
	// blockSpanCont marks a non-first block of a multi-block span. It carries
	// the span's unaligned address so an interior pointer can be walked back to
	// the span start.
	blockSpanCont
)

var blockStateMapping = map[blockState]string{
	blockFree:      "blockFree",
	blockSpanStart: "blockSpanStart",
	blockSpanCont:  "blockSpanCont",
}

func (s blockState) String() string {
	return blockStateMapping[s]
}

// blockDesc describes one block. The zero value is a free block.
type blockDesc struct {
	state blockState
	// span is the number of blocks the allocation occupies, starting here.
	// Meaningful only when state is blockSpanStart.
	span int
	// unaligned is the block-boundary address of the span before alignment
	// padding was applied. Free recovers the owning block through it when the
	// caller's pointer was padded.
	unaligned uintptr
}

// BlockMap is a fixed-size-class sub-allocator: a contiguous backing region
// sliced into count blocks of blockSize bytes each. Both sizes are fixed when
// the owning heap is laid out and never change.
type BlockMap struct {
	region    Region
	blockSize int
	count     int
	freeCount int

	// firstFree is a hint, not a ground truth: when freeCount > 0 some free
	// block exists at or after this index, but a lower free block may exist
	// after frees below it. Allocation repairs it lazily and only forward;
	// only Free ever moves it backward. Known staleness trade-off, kept for
	// its O(1) amortized advancement.
	firstFree int

	blocks []blockDesc
}

func newBlockMap(region Region, blockSize, count int) *BlockMap {
	return &BlockMap{
		region:    region,
		blockSize: blockSize,
		count:     count,
		freeCount: count,
		blocks:    make([]blockDesc, count),
	}
}

// BlockSize returns the bytes per block.
func (m *BlockMap) BlockSize() int { return m.blockSize }

// Count returns the number of blocks in the map.
func (m *BlockMap) Count() int { return m.count }

// FreeCount returns the number of blocks not currently allocated.
func (m *BlockMap) FreeCount() int { return m.freeCount }

// FirstFree returns the current free-search cursor.
func (m *BlockMap) FirstFree() int { return m.firstFree }

// Region returns the backing address range of the map.
func (m *BlockMap) Region() Region { return m.region }

func (m *BlockMap) blockAddr(index int) uintptr {
	return m.region.base + uintptr(index*m.blockSize)
}

func (m *BlockMap) blockIndex(addr uintptr) int {
	return m.region.OffsetOf(addr) / m.blockSize
}

// allocBlock takes the block at the cursor unconditionally and returns its
// alignment-padded address. The caller must have checked freeCount and size
// fit beforehand.
func (m *BlockMap) allocBlock(alignment uint) uintptr {
	memutils.DebugCheckPow2(alignment, "alignment")

	index := m.firstFree
	unaligned := m.blockAddr(index)

	m.blocks[index] = blockDesc{
		state:     blockSpanStart,
		span:      1,
		unaligned: unaligned,
	}
	m.freeCount--
	m.advanceCursor(index)

	return memutils.AlignPointerUp(unaligned, alignment)
}

// advanceCursor moves the cursor to the next free block at or after from, or
// to count if none remains. It never scans indices below from.
func (m *BlockMap) advanceCursor(from int) {
	for i := from; i < m.count; i++ {
		if m.blocks[i].state == blockFree {
			m.firstFree = i
			return
		}
	}

	m.firstFree = m.count
}

// findRun performs a single forward scan from the cursor for a run of needed
// consecutive free blocks, first-fit. On failure, run reports the length of
// the trailing run for diagnostics.
func (m *BlockMap) findRun(needed int) (start int, run int, ok bool) {
	start = m.firstFree

	for current := m.firstFree; current < m.count && run < needed; current++ {
		if m.blocks[current].state != blockFree {
			run = 0
			continue
		}

		if run == 0 {
			start = current
		}
		run++
	}

	return start, run, run >= needed
}

// allocRun marks the run starting at start as one span of count blocks and
// returns its alignment-padded address. The cursor advances past the run only
// when the run began at the cursor; otherwise a free block still exists before
// the run and the cursor stays put.
func (m *BlockMap) allocRun(start, count int, alignment uint) uintptr {
	memutils.DebugCheckPow2(alignment, "alignment")

	unaligned := m.blockAddr(start)

	m.blocks[start] = blockDesc{
		state:     blockSpanStart,
		span:      count,
		unaligned: unaligned,
	}
	for i := start + 1; i < start+count; i++ {
		m.blocks[i] = blockDesc{
			state:     blockSpanCont,
			unaligned: unaligned,
		}
	}

	m.freeCount -= count
	if m.firstFree == start {
		m.advanceCursor(start + count)
	}

	return memutils.AlignPointerUp(unaligned, alignment)
}

// releaseSpan frees the span starting at start and returns the number of
// blocks released. The cursor is pulled back to start when start is below it
// or when the map had no free block left.
func (m *BlockMap) releaseSpan(start int) int {
	span := m.blocks[start].span
	wasFull := m.freeCount == 0

	for i := start; i < start+span; i++ {
		m.blocks[i] = blockDesc{}
		m.freeCount++
	}

	if start < m.firstFree || wasFull {
		m.firstFree = start
	}

	return span
}

// spanCount returns the number of live spans in the map.
func (m *BlockMap) spanCount() int {
	spans := 0
	for i := range m.blocks {
		if m.blocks[i].state == blockSpanStart {
			spans++
		}
	}
	return spans
}

// Validate performs internal consistency checks on the map. When the allocator
// is functioning correctly it cannot return an error; it exists to diagnose
// corruption.
func (m *BlockMap) Validate() error {
	if len(m.blocks) != m.count {
		return cerrors.Newf("map holds %d descriptors but reports %d blocks", len(m.blocks), m.count)
	}
	if m.region.size != m.blockSize*m.count {
		return cerrors.Newf("map region is %d bytes but %d blocks of %d bytes need %d",
			m.region.size, m.count, m.blockSize, m.blockSize*m.count)
	}

	usedBlocks := 0
	spanRemaining := 0
	for i, desc := range m.blocks {
		switch desc.state {
		case blockFree:
			if spanRemaining > 0 {
				return cerrors.Newf("block %d is free inside a span with %d blocks outstanding", i, spanRemaining)
			}
			if desc.span != 0 || desc.unaligned != 0 {
				return cerrors.Newf("free block %d still carries span %d and unaligned address %#x", i, desc.span, desc.unaligned)
			}
		case blockSpanStart:
			if spanRemaining > 0 {
				return cerrors.Newf("block %d starts a span inside a span with %d blocks outstanding", i, spanRemaining)
			}
			if desc.span < 1 || i+desc.span > m.count {
				return cerrors.Newf("block %d starts a span of %d blocks, which does not fit a map of %d", i, desc.span, m.count)
			}
			if desc.unaligned != m.blockAddr(i) {
				return cerrors.Newf("span at block %d stores unaligned address %#x, expected %#x", i, desc.unaligned, m.blockAddr(i))
			}
			spanRemaining = desc.span - 1
			usedBlocks++
		case blockSpanCont:
			if spanRemaining == 0 {
				return cerrors.Newf("block %d continues a span but no span is open", i)
			}
			spanRemaining--
			usedBlocks++
		default:
			return cerrors.Newf("block %d has unknown state %d", i, desc.state)
		}
	}
	if spanRemaining > 0 {
		return cerrors.Newf("final span runs %d blocks past the end of the map", spanRemaining)
	}

	if usedBlocks != m.count-m.freeCount {
		return cerrors.Newf("%d descriptors are in use but counters imply %d", usedBlocks, m.count-m.freeCount)
	}

	if m.freeCount > 0 {
		if m.firstFree >= m.count {
			return cerrors.Newf("cursor is parked at %d with %d blocks still free", m.firstFree, m.freeCount)
		}
		freeAtOrAfter := false
		for i := m.firstFree; i < m.count; i++ {
			if m.blocks[i].state == blockFree {
				freeAtOrAfter = true
				break
			}
		}
		if !freeAtOrAfter {
			return cerrors.Newf("no free block exists at or after the cursor %d", m.firstFree)
		}
	}

	return nil
}

var _ memutils.Validatable = &BlockMap{}

func (m *BlockMap) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.AddBlockMap(m.blockSize, m.count, m.freeCount, m.spanCount())
}

func (m *BlockMap) writeJson(json *jwriter.ObjectState, detailed bool) {
	json.Name("Base").Int(int(m.region.base))
	json.Name("BlockSize").Int(m.blockSize)
	json.Name("Count").Int(m.count)
	json.Name("FreeCount").Int(m.freeCount)
	json.Name("FirstFree").Int(m.firstFree)

	if !detailed {
		return
	}

	spans := json.Name("Spans").Array()
	for i := 0; i < m.count; i++ {
		if m.blocks[i].state != blockSpanStart {
			continue
		}

		span := spans.Object()
		span.Name("Block").Int(i)
		span.Name("Blocks").Int(m.blocks[i].span)
		span.Name("Unaligned").Int(int(m.blocks[i].unaligned))
		span.End()
	}
	spans.End()
}
