package heap

import cerrors "github.com/cockroachdb/errors"

// ErrNotSupported is returned by operations the allocator deliberately does not
// implement, such as power-transition context save and restore.
var ErrNotSupported = cerrors.New("operation not supported")
