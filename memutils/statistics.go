package memutils

import "math"

// Statistics is a cheap summary of allocator state, suitable for polling from
// hot paths.
type Statistics struct {
	HeapCount       int
	BlockMapCount   int
	AllocationCount int
	UsedBytes       int
	FreeBytes       int
}

func (s *Statistics) Clear() {
	s.HeapCount = 0
	s.BlockMapCount = 0
	s.AllocationCount = 0
	s.UsedBytes = 0
	s.FreeBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.HeapCount += other.HeapCount
	s.BlockMapCount += other.BlockMapCount
	s.AllocationCount += other.AllocationCount
	s.UsedBytes += other.UsedBytes
	s.FreeBytes += other.FreeBytes
}

// DetailedStatistics extends Statistics with per-size-class extremes. Collecting
// it walks every block descriptor, so it is meant for diagnostics rather than
// steady-state monitoring.
type DetailedStatistics struct {
	Statistics
	SpanCount     int
	FreeBlockMin  int
	FreeBlockMax  int
	BlockSizeMin  int
	BlockSizeMax  int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.SpanCount = 0
	s.FreeBlockMin = math.MaxInt
	s.FreeBlockMax = 0
	s.BlockSizeMin = math.MaxInt
	s.BlockSizeMax = 0
}

// AddBlockMap folds one size class into the statistics.
func (s *DetailedStatistics) AddBlockMap(blockSize, count, freeCount, spans int) {
	s.BlockMapCount++
	s.SpanCount += spans

	if freeCount < s.FreeBlockMin {
		s.FreeBlockMin = freeCount
	}
	if freeCount > s.FreeBlockMax {
		s.FreeBlockMax = freeCount
	}
	if blockSize < s.BlockSizeMin {
		s.BlockSizeMin = blockSize
	}
	if blockSize > s.BlockSizeMax {
		s.BlockSizeMax = blockSize
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.SpanCount += other.SpanCount

	if other.FreeBlockMin < s.FreeBlockMin {
		s.FreeBlockMin = other.FreeBlockMin
	}
	if other.FreeBlockMax > s.FreeBlockMax {
		s.FreeBlockMax = other.FreeBlockMax
	}
	if other.BlockSizeMin < s.BlockSizeMin {
		s.BlockSizeMin = other.BlockSizeMin
	}
	if other.BlockSizeMax > s.BlockSizeMax {
		s.BlockSizeMax = other.BlockSizeMax
	}
}
