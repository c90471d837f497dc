package heap

import "strings"

// Zone identifies a category of heap allocation with its own lifetime and
// freeability rules.
type Zone uint32

const (
	// ZoneSystem is the per-core allocate-only zone. Memory taken from it is
	// never returned; attempting to free it is fatal.
	ZoneSystem Zone = iota
	// ZoneSystemRuntime is the per-core freeable zone for core-local bookkeeping
	// structures. Only single-block allocation is performed here.
	ZoneSystemRuntime
	// ZoneRuntime is the shared freeable zone selected by capability, falling
	// back to the buffer heaps when no runtime heap matches.
	ZoneRuntime
	// ZoneBuffer is the shared zone for large contiguous requests. It is the
	// only zone where an allocation may span multiple blocks.
	ZoneBuffer
)

var zoneMapping = map[Zone]string{
	ZoneSystem:        "ZoneSystem",
	ZoneSystemRuntime: "ZoneSystemRuntime",
	ZoneRuntime:       "ZoneRuntime",
	ZoneBuffer:        "ZoneBuffer",
}

func (z Zone) String() string {
	return zoneMapping[z]
}

// Caps is the capability mask describing what kind of memory a heap instance
// offers. A request matches a heap when the heap's mask is a superset of the
// requested mask.
type Caps uint32

const (
	// CapRAM marks general data RAM.
	CapRAM Caps = 1 << iota
	// CapLowPower marks memory that stays powered in low-power states.
	CapLowPower
	// CapHighPerf marks the fast, close-to-core memory banks.
	CapHighPerf
	// CapDMA marks memory reachable by the DMA engines.
	CapDMA
	// CapCache marks memory accessed through the data cache.
	CapCache
	// CapExec marks memory that may hold executable code.
	CapExec
)

var capsMapping = map[Caps]string{
	CapRAM:      "CapRAM",
	CapLowPower: "CapLowPower",
	CapHighPerf: "CapHighPerf",
	CapDMA:      "CapDMA",
	CapCache:    "CapCache",
	CapExec:     "CapExec",
}

func (c Caps) String() string {
	if c == 0 {
		return "CapNone"
	}

	var names []string
	for bit := Caps(1); bit != 0 && bit <= c; bit <<= 1 {
		if c&bit != 0 {
			name, known := capsMapping[bit]
			if !known {
				name = "CapUnknown"
			}
			names = append(names, name)
		}
	}

	return strings.Join(names, "|")
}

// Satisfies reports whether this mask covers every capability in request.
func (c Caps) Satisfies(request Caps) bool {
	return c&request == request
}

// AllocFlags modify how an allocation is handed back to the caller.
type AllocFlags uint32

const (
	// FlagShared requests that the returned pointer be remapped through the
	// platform's shared-memory aliasing mechanism before being returned.
	FlagShared AllocFlags = 1 << iota
)

var allocFlagsMapping = map[AllocFlags]string{
	FlagShared: "FlagShared",
}

func (f AllocFlags) String() string {
	if f == 0 {
		return "FlagNone"
	}

	var names []string
	for bit := AllocFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, allocFlagsMapping[bit])
		}
	}

	return strings.Join(names, "|")
}
