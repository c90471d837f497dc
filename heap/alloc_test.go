package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocateRuntime(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 16)
	require.NotNil(t, p)
	require.True(t, m.runtime[0].Region().Contains(uintptr(p)))
	require.Zero(t, uintptr(p)%uintptr(m.CacheAlign()))

	// A 16-byte request still consumes a whole 32-byte block.
	require.Equal(t, 32, m.runtime[0].Used())
	require.NoError(t, m.Validate())
}

func TestAllocateRuntimePicksSmallestFittingClass(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	small := m.Allocate(ZoneRuntime, CapRAM, 0, 32)
	big := m.Allocate(ZoneRuntime, CapRAM, 0, 48)
	require.NotNil(t, small)
	require.NotNil(t, big)

	bm32 := m.runtime[0].maps[0]
	bm64 := m.runtime[0].maps[1]
	require.Equal(t, 3, bm32.FreeCount())
	require.Equal(t, 1, bm64.FreeCount())
}

func TestAllocateRuntimeLargerThanAnyBlockFails(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 65)
	require.Nil(t, p)
	require.Zero(t, m.runtime[0].Used())
}

func TestAllocateRuntimeFallsBackToBufferHeaps(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	// No runtime heap offers DMA memory, but a buffer heap does.
	p := m.Allocate(ZoneRuntime, CapDMA, 0, 16)
	require.NotNil(t, p)
	require.True(t, m.buffer[0].Region().Contains(uintptr(p)))
}

func TestAllocateNoCapabilityMatchFails(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	require.Nil(t, m.Allocate(ZoneRuntime, CapExec, 0, 16))
	require.Nil(t, m.Allocate(ZoneBuffer, CapExec, 0, 16))
}

func TestAllocateSystemRuntimeUsesCallingCore(t *testing.T) {
	m := newTestMap(t, CreateOptions{Platform: StaticPlatform{Core: 1}})

	p := m.Allocate(ZoneSystemRuntime, CapRAM, 0, 24)
	require.NotNil(t, p)
	require.True(t, m.systemRuntime[1].Region().Contains(uintptr(p)))
	require.Zero(t, m.systemRuntime[0].Used())
}

func TestAllocateSystemRuntimeCapsMismatchIsFatal(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	require.Panics(t, func() {
		m.Allocate(ZoneSystemRuntime, CapExec, 0, 16)
	})
}

func TestAllocateExhaustsClassThenFails(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	// The runtime heap has two 64-byte blocks; a 33-byte request fits nothing
	// smaller.
	p1 := m.Allocate(ZoneRuntime, CapRAM, 0, 64)
	p2 := m.Allocate(ZoneRuntime, CapRAM, 0, 64)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.Nil(t, m.Allocate(ZoneRuntime, CapRAM, 0, 64))

	// Freeing one block makes the next request succeed again.
	m.Free(p1)
	p3 := m.Allocate(ZoneRuntime, CapRAM, 0, 64)
	require.Equal(t, p1, p3)
}

func TestAllocateBufferSpan(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	// 200 bytes exceeds every block size, so it lands as a span of two
	// 128-byte blocks.
	p := m.Allocate(ZoneBuffer, CapRAM, 0, 200)
	require.NotNil(t, p)

	h := m.buffer[0]
	bm := h.maps[1]
	require.Equal(t, 128, bm.BlockSize())
	require.Equal(t, 0, bm.FreeCount())
	require.Equal(t, 256, h.Used())
	require.Equal(t, 1, bm.spanCount())
	require.NoError(t, m.Validate())

	m.Free(p)
	require.Equal(t, 2, bm.FreeCount())
	require.Zero(t, h.Used())
	require.NoError(t, m.Validate())
}

func TestAllocateBufferSpanTooLargeFails(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	require.Nil(t, m.Allocate(ZoneBuffer, CapRAM, 0, 4096))
	require.Zero(t, m.buffer[0].Used())
	require.NoError(t, m.Validate())
}

func TestAllocateAlignedRecoversPaddedPointer(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	h := m.buffer[1]
	bm := h.maps[0]

	// Take block 0 so the next allocation starts from an address 48 bytes
	// into the heap, which is not 32-aligned.
	p0 := m.AllocateAligned(CapHighPerf, 0, 8, 1)
	require.NotNil(t, p0)
	require.Equal(t, bm.blockAddr(0), uintptr(p0))

	p1 := m.AllocateAligned(CapHighPerf, 0, 8, 32)
	require.NotNil(t, p1)
	require.Zero(t, uintptr(p1)%32)
	require.Equal(t, 2, bm.FreeCount())

	// Freeing the padded pointer must release the block it pads into.
	m.Free(p1)
	require.Equal(t, 3, bm.FreeCount())
	require.Equal(t, 1, bm.FirstFree())
	require.Equal(t, 48, h.Used())
	require.NoError(t, m.Validate())
}

func TestAllocateAlignedBadAlignmentIsFatal(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	require.Panics(t, func() {
		m.AllocateAligned(CapRAM, 0, 16, 48)
	})
}

func TestAllocateWritableMemory(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneBuffer, CapRAM, 0, 200)
	require.NotNil(t, p)

	data := unsafe.Slice((*byte)(p), 200)
	for i := range data {
		data[i] = byte(i)
	}
	for i := range data {
		require.Equal(t, byte(i), data[i])
	}
}
