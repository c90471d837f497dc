package arena

import (
	"unsafe"

	"github.com/dspkit/blockheap/memutils"
)

// reserveSlice over-allocates from the Go heap and slices off an aligned
// window. The full slice is pinned by the closure so the window stays live.
func reserveSlice(size int, alignment uint) (*Arena, error) {
	if alignment <= 1 {
		return &Arena{data: make([]byte, size)}, nil
	}

	raw := make([]byte, size+int(alignment))
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := memutils.AlignPointerUp(base, alignment) - base

	a := &Arena{
		data: raw[pad : int(pad)+size : int(pad)+size],
		release: func() error {
			_ = raw
			return nil
		},
	}
	return a, nil
}
