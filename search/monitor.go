package search

import (
	"sync/atomic"

	"github.com/poiesic/bookgrep/core"
)

// SearchMonitor provides hooks to observe the search process.
// DocumentScanned and DocumentFault are called from worker goroutines and
// must be safe for concurrent use.
type SearchMonitor interface {
	Start(query core.Query)
	Compiled(matcher Matcher, cached bool)
	DocumentScanned(id core.ID, occurrence int)
	DocumentFault(fault *ScanFault)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.Query)               {}
func (n *noopMonitor) Compiled(_ Matcher, _ bool)       {}
func (n *noopMonitor) DocumentScanned(_ core.ID, _ int) {}
func (n *noopMonitor) DocumentFault(_ *ScanFault)       {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)    {}

// StatsMonitor counts scanned documents and faults for a single search.
type StatsMonitor struct {
	scanned atomic.Int64
	matched atomic.Int64
	faults  atomic.Int64
}

var _ SearchMonitor = (*StatsMonitor)(nil)

func (m *StatsMonitor) Start(_ core.Query)         {}
func (m *StatsMonitor) Compiled(_ Matcher, _ bool) {}

func (m *StatsMonitor) DocumentScanned(_ core.ID, occurrence int) {
	m.scanned.Add(1)
	if occurrence > 0 {
		m.matched.Add(1)
	}
}

func (m *StatsMonitor) DocumentFault(_ *ScanFault)    { m.faults.Add(1) }
func (m *StatsMonitor) Finish(_ []*core.SearchResult) {}

// Scanned returns how many documents were scanned without fault.
func (m *StatsMonitor) Scanned() int { return int(m.scanned.Load()) }

// Matched returns how many scanned documents had at least one occurrence.
func (m *StatsMonitor) Matched() int { return int(m.matched.Load()) }

// Faults returns how many documents were skipped.
func (m *StatsMonitor) Faults() int { return int(m.faults.Load()) }
