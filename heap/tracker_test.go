package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_heap "github.com/dspkit/blockheap/heap/mocks"
)

func TestTrackerReleasesPaddedPointer(t *testing.T) {
	m := newTestMap(t, CreateOptions{TrackAllocations: true})

	// The 48-byte block class hands out a padded pointer for a 32-byte
	// alignment; the tracker entry must still die with the block.
	p0 := m.AllocateAligned(CapHighPerf, 0, 8, 1)
	p1 := m.AllocateAligned(CapHighPerf, 0, 8, 32)
	require.NotNil(t, p0)
	require.NotNil(t, p1)
	require.Equal(t, 2, m.tracker.liveCount())

	m.Free(p1)
	m.Free(p0)
	require.Zero(t, m.tracker.liveCount())
}

func TestTrackerReleasesSpan(t *testing.T) {
	m := newTestMap(t, CreateOptions{TrackAllocations: true})

	p := m.Allocate(ZoneBuffer, CapRAM, 0, 200)
	require.NotNil(t, p)
	require.Equal(t, 1, m.tracker.liveCount())

	m.Free(p)
	require.Zero(t, m.tracker.liveCount())
}

func TestTrackerReleasesSharedAllocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	platform := mock_heap.NewMockPlatform(ctrl)
	platform.EXPECT().CurrentCore().Return(0).AnyTimes()
	platform.EXPECT().Publish(gomock.Any(), gomock.Any()).AnyTimes()

	// The alias handed to the caller is a different address entirely;
	// PrepareFree translates it back, and the tracker must follow suit.
	var granted unsafe.Pointer
	var alias [16]byte
	platform.EXPECT().SharedAlias(gomock.Any(), 16).
		DoAndReturn(func(ptr unsafe.Pointer, size int) unsafe.Pointer {
			granted = ptr
			return unsafe.Pointer(&alias[0])
		})
	platform.EXPECT().PrepareFree(gomock.Any()).
		DoAndReturn(func(ptr unsafe.Pointer) unsafe.Pointer {
			return granted
		})

	m := newTestMap(t, CreateOptions{Platform: platform, TrackAllocations: true})

	p := m.Allocate(ZoneRuntime, CapRAM, FlagShared, 16)
	require.Equal(t, unsafe.Pointer(&alias[0]), p)
	require.Equal(t, 1, m.tracker.liveCount())

	m.Free(p)
	require.Zero(t, m.tracker.liveCount())
	require.Zero(t, m.runtime[0].Used())
}
