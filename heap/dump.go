package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// BuildStatsString writes a JSON snapshot of the whole memory map to writer.
// With detailed set, every block map also lists its live spans.
func (m *MemoryMap) BuildStatsString(writer *jwriter.Writer, detailed bool) {
	m.gate.Lock()
	defer m.gate.Unlock()

	obj := writer.Object()

	general := obj.Name("General").Object()
	general.Name("Cores").Int(len(m.system))
	general.Name("PrimaryCore").Int(m.primaryCore)
	general.Name("TotalBytes").Int(m.region.size)
	general.Name("CacheAlign").Int(int(m.cacheAlign))
	if m.tracker != nil {
		general.Name("LiveAllocations").Int(m.tracker.liveCount())
	}
	general.End()

	m.writeHeapArray(&obj, "System", m.system, detailed)
	m.writeHeapArray(&obj, "SystemRuntime", m.systemRuntime, detailed)
	m.writeHeapArray(&obj, "Runtime", m.runtime, detailed)
	m.writeHeapArray(&obj, "Buffer", m.buffer, detailed)

	obj.End()
}

func (m *MemoryMap) writeHeapArray(json *jwriter.ObjectState, name string, heaps []*ZoneHeap, detailed bool) {
	arr := json.Name(name).Array()
	for _, h := range heaps {
		heapObj := arr.Object()
		h.writeJson(&heapObj, detailed)
		heapObj.End()
	}
	arr.End()
}

// TraceHeaps logs the usage of every freeable heap. Unless force is set, the
// trace is skipped when nothing changed since the last one, so a periodic
// caller stays quiet on an idle system.
func (m *MemoryMap) TraceHeaps(force bool) {
	m.gate.Lock()
	defer m.gate.Unlock()

	if !m.traceDirty && !force {
		return
	}

	for _, h := range m.buffer {
		m.traceHeapUnlocked("buffer heap", h)
	}
	for _, h := range m.runtime {
		m.traceHeapUnlocked("runtime heap", h)
	}
	for core, h := range m.systemRuntime {
		m.logger.Info("system-runtime heap",
			slog.Int("core", core),
			slog.Int("used", h.used),
			slog.Int("free", h.free))
	}
	for core, h := range m.system {
		m.logger.Info("system heap",
			slog.Int("core", core),
			slog.Int("used", h.used),
			slog.Int("free", h.free))
	}

	m.traceDirty = false
}

func (m *MemoryMap) traceHeapUnlocked(label string, h *ZoneHeap) {
	m.logger.Info(label,
		slog.Uint64("base", uint64(h.region.base)),
		slog.Int("size", h.region.size),
		slog.String("caps", h.caps.String()),
		slog.Int("used", h.used),
		slog.Int("free", h.free))

	for _, bm := range h.maps {
		m.logger.Info("block map",
			slog.Int("blockSize", bm.blockSize),
			slog.Int("count", bm.count),
			slog.Int("freeCount", bm.freeCount),
			slog.Int("firstFree", bm.firstFree))
	}
}

// traceAllocFailure reports a failed allocation, then traces every heap whose
// capability mask could have served the request so the log shows where the
// space went.
func (m *MemoryMap) traceAllocFailure(zone Zone, caps Caps, flags AllocFlags, size int) {
	m.logger.Error("allocation failed",
		slog.String("zone", zone.String()),
		slog.String("caps", caps.String()),
		slog.String("flags", flags.String()),
		slog.Int("bytes", size))

	m.gate.Lock()
	defer m.gate.Unlock()

	for _, h := range m.runtime {
		if h.caps.Satisfies(caps) {
			m.traceCandidateUnlocked("candidate runtime heap", h)
		}
	}
	for _, h := range m.buffer {
		if h.caps.Satisfies(caps) {
			m.traceCandidateUnlocked("candidate buffer heap", h)
		}
	}
}

func (m *MemoryMap) traceCandidateUnlocked(label string, h *ZoneHeap) {
	m.logger.Debug(label,
		slog.Uint64("base", uint64(h.region.base)),
		slog.String("caps", h.caps.String()),
		slog.Int("used", h.used),
		slog.Int("free", h.free))

	for _, bm := range h.maps {
		m.logger.Debug("candidate block map",
			slog.Int("blockSize", bm.blockSize),
			slog.Int("freeCount", bm.freeCount),
			slog.Int("firstFree", bm.firstFree))
	}
}
