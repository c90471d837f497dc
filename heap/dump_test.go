package heap

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type statsDump struct {
	General struct {
		Cores           int
		PrimaryCore     int
		TotalBytes      int
		CacheAlign      int
		LiveAllocations *int
	}
	System        []json.RawMessage
	SystemRuntime []json.RawMessage
	Runtime       []heapDump
	Buffer        []heapDump
}

type heapDump struct {
	Base      int
	Size      int
	Caps      string
	Used      int
	Free      int
	BlockMaps []struct {
		Base      int
		BlockSize int
		Count     int
		FreeCount int
		FirstFree int
		Spans     []struct {
			Block     int
			Blocks    int
			Unaligned int
		}
	}
}

func buildStats(t *testing.T, m *MemoryMap, detailed bool) statsDump {
	writer := jwriter.NewWriter()
	m.BuildStatsString(&writer, detailed)
	require.NoError(t, writer.Error())

	var dump statsDump
	require.NoError(t, json.Unmarshal(writer.Bytes(), &dump))
	return dump
}

func TestBuildStatsString(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneBuffer, CapRAM, 0, 200)
	require.NotNil(t, p)

	dump := buildStats(t, m, false)

	require.Equal(t, 2, dump.General.Cores)
	require.Equal(t, 0, dump.General.PrimaryCore)
	require.Equal(t, m.Region().Size(), dump.General.TotalBytes)
	require.Equal(t, 8, dump.General.CacheAlign)
	require.Nil(t, dump.General.LiveAllocations)

	require.Len(t, dump.System, 2)
	require.Len(t, dump.SystemRuntime, 2)
	require.Len(t, dump.Runtime, 1)
	require.Len(t, dump.Buffer, 2)

	require.Equal(t, 256, dump.Buffer[0].Used)
	require.Equal(t, "CapRAM|CapDMA", dump.Buffer[0].Caps)
	require.Empty(t, dump.Buffer[0].BlockMaps[1].Spans)
}

func TestBuildStatsStringDetailed(t *testing.T) {
	m := newTestMap(t, CreateOptions{})

	p := m.Allocate(ZoneBuffer, CapRAM, 0, 200)
	require.NotNil(t, p)

	dump := buildStats(t, m, true)

	spans := dump.Buffer[0].BlockMaps[1].Spans
	require.Len(t, spans, 1)
	require.Equal(t, 0, spans[0].Block)
	require.Equal(t, 2, spans[0].Blocks)
}

func TestBuildStatsStringLiveAllocations(t *testing.T) {
	m := newTestMap(t, CreateOptions{TrackAllocations: true})

	p1 := m.Allocate(ZoneRuntime, CapRAM, 0, 16)
	p2 := m.Allocate(ZoneRuntime, CapRAM, 0, 16)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	m.Free(p1)

	dump := buildStats(t, m, false)
	require.NotNil(t, dump.General.LiveAllocations)
	require.Equal(t, 1, *dump.General.LiveAllocations)
}

func TestTraceHeapsOnlyWhenDirty(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf))

	m, err := NewMemoryMap(testLayout(), CreateOptions{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.backing.Release())
	})

	// Nothing has changed yet, so an unforced trace stays silent.
	m.TraceHeaps(false)
	require.Empty(t, buf.String())

	p := m.Allocate(ZoneRuntime, CapRAM, 0, 16)
	require.NotNil(t, p)

	buf.Reset()
	m.TraceHeaps(false)
	require.Contains(t, buf.String(), "runtime heap")

	// The trace consumed the dirty flag.
	buf.Reset()
	m.TraceHeaps(false)
	require.Empty(t, buf.String())

	m.TraceHeaps(true)
	require.Contains(t, buf.String(), "system heap")
}

func TestFailedAllocationIsTraced(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewTextHandler(&buf))

	m, err := NewMemoryMap(testLayout(), CreateOptions{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.backing.Release())
	})

	require.Nil(t, m.Allocate(ZoneBuffer, CapRAM, 0, 4096))
	require.Contains(t, buf.String(), "allocation failed")
	require.Contains(t, buf.String(), "candidate buffer heap")
}
