package data

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

func cohortResult(name string, regimens int) entities.CohortResult {
	r := entities.CohortResult{
		Cohort:  name,
		Mapping: entities.DrugMapping{"Drug A": "C1"},
	}
	for i := 0; i < regimens; i++ {
		r.Abbreviations = append(r.Abbreviations, entities.RegimenAbbreviation{
			Regimen:      fmt.Sprintf("Drug %d", i),
			Abbreviation: fmt.Sprintf("C%d", i),
			Count:        regimens - i,
		})
	}
	return r
}

func TestNewDataContainer(t *testing.T) {
	dc := NewDataContainer()

	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}
	if len(dc.GetResults()) != 0 {
		t.Error("NewDataContainer should have no results")
	}
	if len(dc.GetCohortNames()) != 0 {
		t.Error("NewDataContainer should have no cohorts")
	}
	if _, ok := dc.GetCohort("BrCa"); ok {
		t.Error("NewDataContainer should not find any cohort")
	}
}

func TestUpdateData(t *testing.T) {
	dc := NewDataContainer()
	before := time.Now()

	input := []entities.CohortResult{cohortResult("PANC", 1), cohortResult("BrCa", 2)}
	dc.UpdateData(input)

	if got := dc.GetCohortNames(); len(got) != 2 || got[0] != "BrCa" || got[1] != "PANC" {
		t.Errorf("Expected sorted names [BrCa PANC], got %v", got)
	}
	if got := dc.GetResults(); len(got) != 2 || got[0].Cohort != "PANC" {
		t.Errorf("Expected results in refresh order, got %v", got)
	}

	brca, ok := dc.GetCohort("BrCa")
	if !ok {
		t.Fatal("Expected to find BrCa")
	}
	if len(brca.Abbreviations) != 2 {
		t.Errorf("Expected 2 regimens, got %d", len(brca.Abbreviations))
	}
	if dc.GetLastUpdated().Before(before) {
		t.Error("lastUpdated should be set by UpdateData")
	}

	// Changing the caller's slice must not change the stored results
	input[0] = cohortResult("CRC", 0)
	if got := dc.GetResults()[0].Cohort; got != "PANC" {
		t.Errorf("Stored results changed with input slice: %s", got)
	}
}

func TestUpdateDataReplacesEverything(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData([]entities.CohortResult{cohortResult("BrCa", 1), cohortResult("CRC", 1)})
	dc.UpdateData([]entities.CohortResult{cohortResult("NSCLC", 1)})

	if _, ok := dc.GetCohort("BrCa"); ok {
		t.Error("Old cohorts should be gone after an update")
	}
	if names := dc.GetCohortNames(); len(names) != 1 || names[0] != "NSCLC" {
		t.Errorf("Expected [NSCLC], got %v", names)
	}

	dc.UpdateData(nil)
	if len(dc.GetResults()) != 0 {
		t.Error("Expected no results after empty update")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if !dc.IsUpdating() {
		t.Error("Should be updating after BeginUpdate")
	}
	if dc.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}

	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("Should not be updating after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed after EndUpdate")
	}
}

func TestConcurrentBeginUpdate(t *testing.T) {
	dc := NewDataContainer()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dc.BeginUpdate() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly one BeginUpdate to succeed, got %d", winners)
	}
}

func TestConcurrentReadsDuringUpdate(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData([]entities.CohortResult{cohortResult("BrCa", 3)})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := dc.GetCohort("BrCa"); !ok {
					t.Error("BrCa missing during update")
					return
				}
				results := dc.GetResults()
				if len(results) != 1 {
					t.Errorf("Expected one cohort, got %d", len(results))
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		dc.UpdateData([]entities.CohortResult{cohortResult("BrCa", i%5)})
	}
	close(stop)
	wg.Wait()
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero start time")
	}

	now := time.Now()
	dc.SetServerStartTime(now)
	if !dc.GetServerStartTime().Equal(now) {
		t.Errorf("Expected %v, got %v", now, dc.GetServerStartTime())
	}
}

func BenchmarkGetCohort(b *testing.B) {
	dc := NewDataContainer()
	dc.UpdateData([]entities.CohortResult{cohortResult("BrCa", 20), cohortResult("CRC", 20)})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = dc.GetCohort("CRC")
	}
}
