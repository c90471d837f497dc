package utils

import (
	"sync"
)

// ExclusiveGate serializes every mutation of a memory map across all cores.
// Critical sections under the gate must be bounded, must not block, and must
// not re-enter the gate; holders call only the Unlocked variants of allocator
// operations. Serialize may be left false for single-core images, where the
// execution model already provides exclusion.
type ExclusiveGate struct {
	Mutex     sync.Mutex
	Serialize bool
}

func (g *ExclusiveGate) Lock() {
	if g.Serialize {
		g.Mutex.Lock()
	}
}

func (g *ExclusiveGate) Unlock() {
	if g.Serialize {
		g.Mutex.Unlock()
	}
}
