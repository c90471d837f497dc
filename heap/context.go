package heap

// Power-transition context handling for the allocator is deliberately
// unimplemented: heap contents live in memory that stays powered, and the
// layout is rebuilt from configuration on every boot.

// ContextSize returns the bytes needed to save the allocator's state across a
// power transition. No state is saved, so it is always zero.
func (m *MemoryMap) ContextSize() int {
	return 0
}

// SaveContext would persist allocator state before a power transition. It
// always returns ErrNotSupported.
func (m *MemoryMap) SaveContext() error {
	return ErrNotSupported
}

// RestoreContext would restore allocator state after a power transition. It
// always returns ErrNotSupported.
func (m *MemoryMap) RestoreContext() error {
	return ErrNotSupported
}
