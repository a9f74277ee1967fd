// Package interfaces defines the contracts between the pipeline, the data
// store and the HTTP layer
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/giygas/bpc-regimens/synapse"
)

// DataQualityReport summarizes issues found across cohort results
type DataQualityReport struct {
	CohortsWithoutMapping   []string
	CohortsWithoutRegimens  []string
	SkippedSegments         int            // Malformed choices segments over all cohorts
	Overrides               int            // Labels whose code changed between tables
	UnknownLabels           map[string]int // Per cohort, only set when unknown labels are skipped
	FieldsNotFoundPerCohort map[string]int
}

// DataStore holds the latest cohort results. Updates replace everything at
// once so readers never see a partial refresh.
type DataStore interface {
	GetResults() []entities.CohortResult
	GetCohort(name string) (entities.CohortResult, bool)
	GetCohortNames() []string
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateData(results []entities.CohortResult)
	BeginUpdate() bool
	EndUpdate()
}

// TableService is the remote table and file service the pipeline reads from
type TableService interface {
	QueryCohortFolder(ctx context.Context, tableID, cohort string) (string, error)
	ListChildren(ctx context.Context, parentID string) ([]synapse.EntityHeader, error)
	FetchLocalPath(ctx context.Context, id string) (string, error)
}

// Parser computes the mapping and abbreviations of cohorts
type Parser interface {
	ParseCohort(ctx context.Context, cohort string) (entities.CohortResult, error)
	ParseAllCohorts(ctx context.Context, cohorts []string) ([]entities.CohortResult, error)
}

// Scheduler runs the periodic refresh
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler serves the API endpoints
type HTTPHandler interface {
	ListCohorts(w http.ResponseWriter, r *http.Request)
	CohortMapping(w http.ResponseWriter, r *http.Request)
	CohortRegimens(w http.ResponseWriter, r *http.Request)
	AbbreviateRegimen(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports the state of the service
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator checks user input and refreshed data
type DataValidator interface {
	ValidateCohortName(input string) error
	ValidateRegimen(input string) error
	ValidateDataIntegrity(results []entities.CohortResult) error
	ReportDataQuality(results []entities.CohortResult) *DataQualityReport
}
