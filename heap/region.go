package heap

// Region is a half-open address range [Base, Base+Size). Heap and block-map
// membership tests are plain O(1) arithmetic on regions; no structure other
// than the owning heap keeps pointers to the range.
type Region struct {
	base uintptr
	size int
}

func makeRegion(base uintptr, size int) Region {
	return Region{base: base, size: size}
}

// Base returns the first address of the region.
func (r Region) Base() uintptr { return r.base }

// Size returns the region length in bytes.
func (r Region) Size() int { return r.size }

// End returns the first address past the region.
func (r Region) End() uintptr { return r.base + uintptr(r.size) }

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.base && addr < r.End()
}

// OffsetOf returns the byte offset of addr from the region base. The caller
// must already know the address is inside the region.
func (r Region) OffsetOf(addr uintptr) int {
	return int(addr - r.base)
}
