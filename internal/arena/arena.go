// Package arena reserves the byte region that backs a memory map. The region is
// reserved once, sized at construction, and never grows or moves afterward.
package arena

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/dspkit/blockheap/memutils"
)

// Arena is a fixed backing region. Data never reallocates for the lifetime of
// the arena, so addresses taken into it stay valid.
type Arena struct {
	data    []byte
	release func() error
}

// Reserve obtains a region of at least size bytes whose base address is a
// multiple of alignment. Alignment must be a power of two.
func Reserve(size int, alignment uint) (*Arena, error) {
	if size <= 0 {
		return nil, cerrors.Newf("arena size must be positive, not %d", size)
	}
	if err := memutils.CheckPow2(alignment, "arena alignment"); err != nil {
		return nil, err
	}

	return reserve(size, alignment)
}

// Bytes returns the backing region.
func (a *Arena) Bytes() []byte { return a.data }

// Release returns the region to the platform. The arena must not be used
// afterward. Releasing is only expected in tests; firmware images hold the
// region for the whole process lifetime.
func (a *Arena) Release() error {
	if a.release == nil {
		a.data = nil
		return nil
	}

	err := a.release()
	a.data = nil
	a.release = nil
	return err
}
