// Package data keeps the latest cohort results in memory and swaps them
// atomically when a refresh completes
package data

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/giygas/bpc-regimens/interfaces"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is one complete refresh, never modified after it is stored
type snapshot struct {
	results []entities.CohortResult
	byName  map[string]entities.CohortResult
	names   []string
}

// DataContainer holds the results of the last refresh
type DataContainer struct {
	current         atomic.Value // *snapshot
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates an empty DataContainer
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(newSnapshot(nil))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func newSnapshot(results []entities.CohortResult) *snapshot {
	s := &snapshot{
		results: make([]entities.CohortResult, len(results)),
		byName:  make(map[string]entities.CohortResult, len(results)),
		names:   make([]string, 0, len(results)),
	}
	copy(s.results, results)
	for _, r := range results {
		if _, dup := s.byName[r.Cohort]; !dup {
			s.names = append(s.names, r.Cohort)
		}
		s.byName[r.Cohort] = r
	}
	sort.Strings(s.names)
	return s
}

func (dc *DataContainer) load() *snapshot {
	if v := dc.current.Load(); v != nil {
		if s, ok := v.(*snapshot); ok {
			return s
		}
	}

	logging.Warn("Cohort results are empty or invalid")
	return newSnapshot(nil)
}

// GetResults returns the cohort results in refresh order
func (dc *DataContainer) GetResults() []entities.CohortResult {
	return dc.load().results
}

// GetCohort returns the result of one cohort
func (dc *DataContainer) GetCohort(name string) (entities.CohortResult, bool) {
	r, ok := dc.load().byName[name]
	return r, ok
}

// GetCohortNames returns the cohort names in ascending order
func (dc *DataContainer) GetCohortNames() []string {
	return dc.load().names
}

// GetLastUpdated returns the time of the last successful refresh
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true while a refresh is running
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}
	return time.Time{}
}

// UpdateData replaces all results at once
func (dc *DataContainer) UpdateData(results []entities.CohortResult) {
	dc.current.Store(newSnapshot(results))
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a refresh.
// Returns false if another refresh is already running.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a refresh
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
