//go:build debug_mem_utils

package memutils

import "unsafe"

const (
	// FreePatternEnabled reports whether freed blocks are filled with FreePattern.
	// It is true only when the debug_mem_utils build tag is present.
	FreePatternEnabled = true
	// FreePattern is the byte written across a block when it is released, so a
	// later release of the same block can be recognized as a double free.
	FreePattern uint8 = 0xa5
)

const freePattern32 uint32 = 0xa5a5a5a5

// WriteFreePattern fills size bytes at data with FreePattern.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteFreePattern(data unsafe.Pointer, size int) {
	region := unsafe.Slice((*byte)(data), size)
	for i := range region {
		region[i] = FreePattern
	}
}

// ValidateFreePattern reports whether every 32-bit word at data still carries the
// free pattern. A true result on a block being freed means the block was already
// released once before.
// This method always returns false unless the debug_mem_utils build tag is present.
func ValidateFreePattern(data unsafe.Pointer, size int) bool {
	words := unsafe.Slice((*uint32)(data), size/4)
	for _, word := range words {
		if word != freePattern32 {
			return false
		}
	}
	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors
// are returned. This method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two,
// and panics if it is not. This method no-ops unless the debug_mem_utils build tag
// is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
