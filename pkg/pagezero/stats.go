package pagezero

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stats accumulates process-global counters over everything the engine
// does. Entries are pushed with Store from regions, scans and the
// benchmark loop, and read back as a summary or through the prometheus
// collector.
type Stats struct {
	mutex      sync.Mutex
	regions    StatsRegions
	scans      StatsScans
	reclaims   StatsReclaims
	strategies mapStringPStatsStrategy
}

type StatsRegions struct {
	mapped       uint64
	unmapped     uint64
	mappedBytes  uint64
	dirtiedBytes uint64
}

type StatsScans struct {
	scans        uint64
	syscalls     uint64
	scannedPages uint64
	matchedPages uint64
	ranges       uint64
}

type StatsReclaims struct {
	zeroedBytes    uint64
	discardedBytes uint64
}

type StatsStrategy struct {
	measurements uint64
	errors       uint64
	sumNs        uint64
	minNs        uint64
	maxNs        uint64
}

// Store entry types.
type StatsRegionMapped struct {
	bytes uint64
}

type StatsRegionUnmapped struct {
	bytes uint64
}

type StatsDirtied struct {
	bytes uint64
}

type StatsScan struct {
	scans        uint64
	syscalls     uint64
	scannedPages uint64
	matchedPages uint64
	ranges       uint64
}

type StatsZeroed struct {
	bytes uint64
}

type StatsDiscarded struct {
	bytes uint64
}

type StatsMeasurement struct {
	strategy string
	duration time.Duration
	failed   bool
}

var stats *Stats = newStats()

func newStats() *Stats {
	return &Stats{
		strategies: make(mapStringPStatsStrategy),
	}
}

func GetStats() *Stats {
	return stats
}

func (s *Stats) Store(entry interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch v := entry.(type) {
	case StatsRegionMapped:
		s.regions.mapped += 1
		s.regions.mappedBytes += v.bytes
	case StatsRegionUnmapped:
		s.regions.unmapped += 1
	case StatsDirtied:
		s.regions.dirtiedBytes += v.bytes
	case StatsScan:
		s.scans.scans += v.scans
		s.scans.syscalls += v.syscalls
		s.scans.scannedPages += v.scannedPages
		s.scans.matchedPages += v.matchedPages
		s.scans.ranges += v.ranges
	case StatsZeroed:
		s.reclaims.zeroedBytes += v.bytes
	case StatsDiscarded:
		s.reclaims.discardedBytes += v.bytes
	case StatsMeasurement:
		ss, ok := s.strategies[v.strategy]
		if !ok {
			ss = &StatsStrategy{}
			s.strategies[v.strategy] = ss
		}
		if v.failed {
			ss.errors += 1
			return
		}
		ns := uint64(v.duration.Nanoseconds())
		ss.measurements += 1
		ss.sumNs += ns
		if ss.measurements == 1 || ns < ss.minNs {
			ss.minNs = ns
		}
		if ns > ss.maxNs {
			ss.maxNs = ns
		}
	}
}

type statsSnapshot struct {
	regions    StatsRegions
	scans      StatsScans
	reclaims   StatsReclaims
	strategies mapStringPStatsStrategy
}

func (s *Stats) snapshot() statsSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snap := statsSnapshot{
		regions:    s.regions,
		scans:      s.scans,
		reclaims:   s.reclaims,
		strategies: make(mapStringPStatsStrategy, len(s.strategies)),
	}
	for name, ss := range s.strategies {
		ssCopy := *ss
		snap.strategies[name] = &ssCopy
	}
	return snap
}

func (s *Stats) Summarize() string {
	snap := s.snapshot()
	lines := []string{}
	lines = append(lines, "table: regions")
	lines = append(lines, "   mapped unmapped  size[M] dirtied[M]")
	lines = append(lines, fmt.Sprintf("%9d %8d %8d %10d",
		snap.regions.mapped,
		snap.regions.unmapped,
		snap.regions.mappedBytes/(1024*1024),
		snap.regions.dirtiedBytes/(1024*1024)))
	lines = append(lines, "table: pagemap scans")
	lines = append(lines, "    scans syscalls scanned[pages] matched[pages]   ranges")
	lines = append(lines, fmt.Sprintf("%9d %8d %14d %14d %8d",
		snap.scans.scans,
		snap.scans.syscalls,
		snap.scans.scannedPages,
		snap.scans.matchedPages,
		snap.scans.ranges))
	lines = append(lines, "table: reclaimed bytes")
	lines = append(lines, "   zeroed[M] discarded[M]")
	lines = append(lines, fmt.Sprintf("%12d %12d",
		snap.reclaims.zeroedBytes/(1024*1024),
		snap.reclaims.discardedBytes/(1024*1024)))
	lines = append(lines, "table: measurements")
	lines = append(lines, "     strategy    count   errors  min[us]  avg[us]  max[us]")
	for _, name := range snap.strategies.sortedKeys() {
		ss := snap.strategies[name]
		avgNs := uint64(0)
		if ss.measurements > 0 {
			avgNs = ss.sumNs / ss.measurements
		}
		lines = append(lines, fmt.Sprintf("%13s %8d %8d %8d %8d %8d",
			name,
			ss.measurements,
			ss.errors,
			ss.minNs/1000,
			avgNs/1000,
			ss.maxNs/1000))
	}
	return strings.Join(lines, "\n")
}
