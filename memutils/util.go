package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

// CheckPow2 returns PowerOfTwoError if number is not zero or a power of two.
// Zero is accepted because callers treat a zero alignment as "no alignment".
func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignPointerUp rounds an address up to the next multiple of alignment.
// An alignment of 0 or 1 leaves the address untouched.
func AlignPointerUp(addr uintptr, alignment uint) uintptr {
	if alignment <= 1 {
		return addr
	}
	return (addr + uintptr(alignment) - 1) &^ (uintptr(alignment) - 1)
}

// PointerAligned reports whether addr is a multiple of alignment.
func PointerAligned(addr uintptr, alignment uint) bool {
	if alignment <= 1 {
		return true
	}
	return addr%uintptr(alignment) == 0
}
