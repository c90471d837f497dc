package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func fillBytes(p unsafe.Pointer, n int, seed byte) {
	data := unsafe.Slice((*byte)(p), n)
	for i := range data {
		data[i] = seed + byte(i)
	}
}

func TestReallocateGrowCopiesData(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 24)
	require.NotNil(t, p)
	fillBytes(p, 24, 1)

	q := m.Reallocate(p, ZoneRuntime, CapRAM, 0, 64)
	require.NotNil(t, q)
	require.NotEqual(t, p, q)

	data := unsafe.Slice((*byte)(q), 24)
	for i := range data {
		require.Equal(t, byte(1+i), data[i])
	}

	// The old block went back to its map.
	require.Equal(t, 64, m.runtime[0].Used())
	require.Equal(t, 4, m.runtime[0].maps[0].FreeCount())
	require.NoError(t, m.Validate())
}

func TestReallocateShrinkCopiesNewSize(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 64)
	require.NotNil(t, p)
	fillBytes(p, 64, 7)

	q := m.Reallocate(p, ZoneRuntime, CapRAM, 0, 16)
	require.NotNil(t, q)

	data := unsafe.Slice((*byte)(q), 16)
	for i := range data {
		require.Equal(t, byte(7+i), data[i])
	}
	require.Equal(t, 32, m.runtime[0].Used())
}

func TestReallocateNilPointerAllocates(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Reallocate(nil, ZoneRuntime, CapRAM, 0, 16)
	require.NotNil(t, p)
	require.Equal(t, 32, m.runtime[0].Used())
}

func TestReallocateZeroSizeLeavesOldIntact(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 24)
	require.NotNil(t, p)
	fillBytes(p, 24, 3)

	require.Nil(t, m.Reallocate(p, ZoneRuntime, CapRAM, 0, 0))

	// The original allocation is untouched and still live.
	require.Equal(t, 32, m.runtime[0].Used())
	data := unsafe.Slice((*byte)(p), 24)
	for i := range data {
		require.Equal(t, byte(3+i), data[i])
	}
}

func TestReallocateFailureLeavesOldIntact(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 24)
	require.NotNil(t, p)
	fillBytes(p, 24, 5)

	// Nothing can serve 4096 bytes, so the reallocation fails and the old
	// allocation survives.
	require.Nil(t, m.Reallocate(p, ZoneRuntime, CapRAM, 0, 4096))
	require.Equal(t, 32, m.runtime[0].Used())

	data := unsafe.Slice((*byte)(p), 24)
	for i := range data {
		require.Equal(t, byte(5+i), data[i])
	}
}

func TestReallocateAlignedGrowsIntoSpan(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.AllocateAligned(CapDMA, 0, 32, 8)
	require.NotNil(t, p)
	fillBytes(p, 32, 9)

	q := m.ReallocateAligned(p, CapDMA, 0, 200, 8)
	require.NotNil(t, q)
	require.Zero(t, uintptr(q)%8)

	data := unsafe.Slice((*byte)(q), 32)
	for i := range data {
		require.Equal(t, byte(9+i), data[i])
	}

	// Only the span remains allocated.
	require.Equal(t, 256, m.buffer[0].Used())
	require.NoError(t, m.Validate())
}
