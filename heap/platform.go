package heap

import "unsafe"

// Platform is the set of hooks the allocator needs from the surrounding
// firmware: core identity, the cache-coherency publish primitive, and the
// shared-memory aliasing mechanism. All methods are called with the memory map
// gate held and must not call back into the allocator.
type Platform interface {
	// CurrentCore returns the index of the core executing the caller.
	CurrentCore() int
	// Publish makes a just-mutated structure visible to the other cores. It is
	// invoked on every heap, block map, and descriptor array a mutation path
	// touched, before the gate is released.
	Publish(ptr unsafe.Pointer, size int)
	// SharedAlias remaps an allocation through the platform's shared-memory
	// alias so all cores observe an uncached view of it.
	SharedAlias(ptr unsafe.Pointer, size int) unsafe.Pointer
	// PrepareFree undoes SharedAlias, translating a pointer a client holds back
	// into the address the allocator handed out.
	PrepareFree(ptr unsafe.Pointer) unsafe.Pointer
}

// StaticPlatform is the Platform used when the firmware image runs a single
// coherent core: core identity is fixed, publishing is unnecessary, and shared
// aliasing is the identity mapping.
type StaticPlatform struct {
	Core int
}

var _ Platform = StaticPlatform{}

func (p StaticPlatform) CurrentCore() int { return p.Core }

func (p StaticPlatform) Publish(ptr unsafe.Pointer, size int) {}

func (p StaticPlatform) SharedAlias(ptr unsafe.Pointer, size int) unsafe.Pointer {
	return ptr
}

func (p StaticPlatform) PrepareFree(ptr unsafe.Pointer) unsafe.Pointer {
	return ptr
}
