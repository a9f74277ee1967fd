package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/giygas/bpc-regimens/validation"
)

type mockDataStore struct {
	mu          sync.Mutex
	results     []entities.CohortResult
	lastUpdated time.Time
	updating    bool
	updateCount int
}

func (m *mockDataStore) GetResults() []entities.CohortResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results
}

func (m *mockDataStore) GetCohort(name string) (entities.CohortResult, bool) {
	for _, r := range m.GetResults() {
		if r.Cohort == name {
			return r, true
		}
	}
	return entities.CohortResult{}, false
}

func (m *mockDataStore) GetCohortNames() []string {
	var names []string
	for _, r := range m.GetResults() {
		names = append(names, r.Cohort)
	}
	return names
}

func (m *mockDataStore) GetLastUpdated() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdated
}

func (m *mockDataStore) IsUpdating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updating
}

func (m *mockDataStore) GetServerStartTime() time.Time { return time.Time{} }

func (m *mockDataStore) UpdateData(results []entities.CohortResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
	m.lastUpdated = time.Now()
	m.updateCount++
}

func (m *mockDataStore) BeginUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *mockDataStore) EndUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updating = false
}

type mockParser struct {
	mu          sync.Mutex
	parseCount  int
	err         error
	results     []entities.CohortResult
	gotCohorts  []string
	hadDeadline bool
}

func (m *mockParser) ParseCohort(ctx context.Context, cohort string) (entities.CohortResult, error) {
	return entities.CohortResult{}, errors.New("not used")
}

func (m *mockParser) ParseAllCohorts(ctx context.Context, cohorts []string) ([]entities.CohortResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseCount++
	m.gotCohorts = cohorts
	_, m.hadDeadline = ctx.Deadline()
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func cohortResult(name string) entities.CohortResult {
	return entities.CohortResult{
		Cohort:  name,
		Mapping: entities.DrugMapping{"Letrozole": "C1527"},
		Abbreviations: []entities.RegimenAbbreviation{
			{Regimen: "Letrozole", Abbreviation: "C1527", Count: 3},
		},
	}
}

func newTestScheduler(store *mockDataStore, parser *mockParser, opts Options) *Scheduler {
	if opts.RefreshAt == "" {
		opts.RefreshAt = "06:00;18:00"
	}
	if opts.Cohorts == nil {
		opts.Cohorts = []string{"BrCa", "CRC"}
	}
	return NewScheduler(store, parser, validation.NewDataValidator(), opts)
}

func TestSchedulerStartLoadsData(t *testing.T) {
	store := &mockDataStore{}
	parser := &mockParser{results: []entities.CohortResult{cohortResult("BrCa"), cohortResult("CRC")}}

	s := newTestScheduler(store, parser, Options{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if store.updateCount != 1 {
		t.Errorf("expected 1 update, got %d", store.updateCount)
	}
	if len(store.GetResults()) != 2 {
		t.Errorf("expected 2 results, got %d", len(store.GetResults()))
	}
	if strings.Join(parser.gotCohorts, ",") != "BrCa,CRC" {
		t.Errorf("parser called with %v", parser.gotCohorts)
	}
	if store.IsUpdating() {
		t.Error("update flag should be released")
	}
}

func TestSchedulerStartFailsOnParseError(t *testing.T) {
	store := &mockDataStore{}
	parser := &mockParser{err: errors.New("synapse unavailable")}

	s := newTestScheduler(store, parser, Options{})
	defer s.Stop()

	err := s.Start()
	if err == nil || !strings.Contains(err.Error(), "initial data load failed") {
		t.Fatalf("expected initial load error, got %v", err)
	}
	if !strings.Contains(err.Error(), "synapse unavailable") {
		t.Errorf("expected wrapped parser error, got %v", err)
	}
	if store.updateCount != 0 {
		t.Errorf("store must not be updated, got %d updates", store.updateCount)
	}
	if store.IsUpdating() {
		t.Error("update flag should be released after a failure")
	}
}

func TestSchedulerRejectsInvalidResults(t *testing.T) {
	store := &mockDataStore{}
	parser := &mockParser{results: []entities.CohortResult{cohortResult("BrCa"), cohortResult("BrCa")}}

	s := newTestScheduler(store, parser, Options{})
	defer s.Stop()

	err := s.updateData()
	if err == nil || !strings.Contains(err.Error(), "refreshed data rejected") {
		t.Fatalf("expected rejection, got %v", err)
	}
	if store.updateCount != 0 {
		t.Errorf("store must keep the previous data, got %d updates", store.updateCount)
	}
}

func TestSchedulerSkipsConcurrentUpdate(t *testing.T) {
	store := &mockDataStore{updating: true}
	parser := &mockParser{results: []entities.CohortResult{cohortResult("BrCa")}}

	s := newTestScheduler(store, parser, Options{})
	defer s.Stop()

	if err := s.updateData(); err != nil {
		t.Fatalf("expected nil when an update is running, got %v", err)
	}
	if parser.parseCount != 0 {
		t.Errorf("parser should not run, ran %d times", parser.parseCount)
	}
}

func TestSchedulerRefreshTimeout(t *testing.T) {
	store := &mockDataStore{}
	parser := &mockParser{results: []entities.CohortResult{cohortResult("BrCa")}}

	s := newTestScheduler(store, parser, Options{Timeout: time.Minute})
	defer s.Stop()

	if err := s.updateData(); err != nil {
		t.Fatalf("updateData() error = %v", err)
	}
	if !parser.hadDeadline {
		t.Error("expected the refresh context to carry a deadline")
	}
}

func TestSchedulerInvalidRefreshTime(t *testing.T) {
	store := &mockDataStore{}
	parser := &mockParser{results: []entities.CohortResult{cohortResult("BrCa")}}

	s := newTestScheduler(store, parser, Options{RefreshAt: "25:99"})
	defer s.Stop()

	err := s.Start()
	if err == nil || !strings.Contains(err.Error(), "failed to schedule updates") {
		t.Fatalf("expected scheduling error, got %v", err)
	}
}

func TestSchedulerStopCancelsContext(t *testing.T) {
	s := newTestScheduler(&mockDataStore{}, &mockParser{}, Options{})
	s.Stop()

	if s.ctx.Err() == nil {
		t.Error("expected the scheduler context to be cancelled")
	}
}

func TestHealthMonitorStopsWithScheduler(t *testing.T) {
	s := newTestScheduler(&mockDataStore{lastUpdated: time.Now()}, &mockParser{}, Options{})
	s.startHealthMonitoring(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("health monitor did not stop")
	}
}

func TestCheckStaleness(t *testing.T) {
	store := &mockDataStore{lastUpdated: time.Now().Add(-26 * time.Hour)}
	s := newTestScheduler(store, &mockParser{}, Options{})
	defer s.Stop()

	if !s.checkStaleness() {
		t.Error("data older than 25h should be stale")
	}

	store.UpdateData(nil)
	if s.checkStaleness() {
		t.Error("fresh data should not be stale")
	}

	s.opts.StaleAfter = time.Nanosecond
	time.Sleep(time.Millisecond)
	if !s.checkStaleness() {
		t.Error("custom threshold should apply")
	}
}
