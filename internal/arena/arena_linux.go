//go:build linux

package arena

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// reserve maps an anonymous private region. mmap returns page-aligned memory,
// which satisfies any cache-line alignment a layout can ask for.
func reserve(size int, alignment uint) (*Arena, error) {
	pageSize := unix.Getpagesize()
	if int(alignment) > pageSize {
		// No layout should outgrow a page, but fall back rather than fault.
		return reserveSlice(size, alignment)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, cerrors.Wrapf(err, "mmap of %d-byte arena failed", size)
	}

	return &Arena{
		data: data,
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
