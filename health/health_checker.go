// Package health reports whether the cohort results served by the API are
// present and fresh.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/bpc-regimens/config"
	"github.com/giygas/bpc-regimens/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore    interfaces.DataStore
	refreshTimes []time.Duration
	now          func() time.Time
}

// NewHealthChecker creates a health checker. refreshAt uses the REFRESH_AT
// format ("06:00;18:00").
func NewHealthChecker(dataStore interfaces.DataStore, refreshAt string) (interfaces.HealthChecker, error) {
	refreshTimes, err := config.ParseRefreshTimes(refreshAt)
	if err != nil {
		return nil, err
	}
	return &HealthCheckerImpl{
		dataStore:    dataStore,
		refreshTimes: refreshTimes,
		now:          time.Now,
	}, nil
}

// HealthCheck returns the status, the data served to /health and the HTTP code
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	results := h.dataStore.GetResults()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case len(results) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	regimens := 0
	for _, r := range results {
		regimens += len(r.Abbreviations)
	}

	data = map[string]any{
		"cohorts":        h.dataStore.GetCohortNames(),
		"regimens":       regimens,
		"is_updating":    isUpdating,
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
		"uptime_seconds": math.Round(h.now().Sub(h.dataStore.GetServerStartTime()).Seconds()),
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next configured refresh time after now
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, offset := range h.refreshTimes {
		if next := midnight.Add(offset); now.Before(next) {
			return next
		}
	}

	// First slot tomorrow
	return midnight.AddDate(0, 0, 1).Add(h.refreshTimes[0])
}
