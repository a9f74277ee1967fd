// Package handlers serves the cohort results over HTTP
package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/giygas/bpc-regimens/interfaces"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/giygas/bpc-regimens/regimens"
	"github.com/go-chi/chi/v5"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// CohortSummary is one entry of GET /cohorts
type CohortSummary struct {
	Cohort        string    `json:"cohort"`
	Drugs         int       `json:"drugs"`
	Regimens      int       `json:"regimens"`
	UnknownLabels []string  `json:"unknownLabels,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MappingEntry is one label to code pair, listed in label order
type MappingEntry struct {
	Label string `json:"label"`
	Code  string `json:"code"`
}

// MappingResponse is the body of GET /cohorts/{cohort}/mapping
type MappingResponse struct {
	Cohort  string                 `json:"cohort"`
	Mapping []MappingEntry         `json:"mapping"`
	Report  entities.MappingReport `json:"report"`
}

// RegimensResponse is the body of GET /cohorts/{cohort}/regimens
type RegimensResponse struct {
	Cohort   string                         `json:"cohort"`
	Regimens []entities.RegimenAbbreviation `json:"regimens"`
}

// AbbreviationResponse is the body of GET /cohorts/{cohort}/abbreviate
type AbbreviationResponse struct {
	Cohort       string `json:"cohort"`
	Regimen      string `json:"regimen"`
	Abbreviation string `json:"abbreviation"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// ListCohorts returns a summary of every loaded cohort
func (h *HTTPHandlerImpl) ListCohorts(w http.ResponseWriter, r *http.Request) {
	results := h.dataStore.GetResults()
	summaries := make([]CohortSummary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, CohortSummary{
			Cohort:        result.Cohort,
			Drugs:         len(result.Mapping),
			Regimens:      len(result.Abbreviations),
			UnknownLabels: result.UnknownLabels,
			UpdatedAt:     result.UpdatedAt,
		})
	}
	RespondWithJSON(w, r, http.StatusOK, summaries)
}

// cohortFromRequest resolves the {cohort} URL parameter, writing the error
// response itself when it fails
func (h *HTTPHandlerImpl) cohortFromRequest(w http.ResponseWriter, r *http.Request) (entities.CohortResult, bool) {
	name := chi.URLParam(r, "cohort")
	if err := h.validator.ValidateCohortName(name); err != nil {
		logging.Warn("Unusual user input", "cohort", name)
		RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return entities.CohortResult{}, false
	}

	result, ok := h.dataStore.GetCohort(name)
	if !ok {
		RespondWithError(w, r, http.StatusNotFound, "Cohort not found")
		return entities.CohortResult{}, false
	}
	return result, true
}

// CohortMapping returns the drug label to NCIT code mapping of a cohort
func (h *HTTPHandlerImpl) CohortMapping(w http.ResponseWriter, r *http.Request) {
	result, ok := h.cohortFromRequest(w, r)
	if !ok {
		return
	}

	labels := result.Mapping.Labels()
	entries := make([]MappingEntry, 0, len(labels))
	for _, label := range labels {
		entries = append(entries, MappingEntry{Label: label, Code: result.Mapping[label]})
	}

	RespondWithJSON(w, r, http.StatusOK, MappingResponse{
		Cohort:  result.Cohort,
		Mapping: entries,
		Report:  result.Report,
	})
}

// CohortRegimens returns the abbreviated top regimens of a cohort
func (h *HTTPHandlerImpl) CohortRegimens(w http.ResponseWriter, r *http.Request) {
	result, ok := h.cohortFromRequest(w, r)
	if !ok {
		return
	}

	regimenList := result.Abbreviations
	if regimenList == nil {
		regimenList = []entities.RegimenAbbreviation{}
	}
	RespondWithJSON(w, r, http.StatusOK, RegimensResponse{Cohort: result.Cohort, Regimens: regimenList})
}

// AbbreviateRegimen abbreviates an arbitrary regimen with a cohort's mapping
func (h *HTTPHandlerImpl) AbbreviateRegimen(w http.ResponseWriter, r *http.Request) {
	result, ok := h.cohortFromRequest(w, r)
	if !ok {
		return
	}

	regimen := r.URL.Query().Get("regimen")
	if err := h.validator.ValidateRegimen(regimen); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	abbreviation, err := regimens.Abbreviate(regimen, result.Mapping)
	if err != nil {
		var unknown *regimens.UnknownDrugLabelError
		if errors.As(err, &unknown) {
			RespondWithJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{
				Error:   http.StatusText(http.StatusUnprocessableEntity),
				Message: err.Error(),
				Code:    http.StatusUnprocessableEntity,
				Label:   unknown.Label,
			})
			return
		}
		logging.Error("Failed to abbreviate regimen", "cohort", result.Cohort, "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to abbreviate regimen")
		return
	}

	RespondWithJSON(w, r, http.StatusOK, AbbreviationResponse{
		Cohort:       result.Cohort,
		Regimen:      regimen,
		Abbreviation: abbreviation,
	})
}

// HealthCheck returns the health of the data and a few runtime figures
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	RespondWithJSON(w, r, httpStatus, HealthResponse{
		Status: status,
		Data:   data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}
