package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/cohorts/{cohort}/mapping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "/cohorts/{cohort}/mapping", "404"))

	for _, cohort := range []string{"BrCa", "CRC"} {
		req := httptest.NewRequest(http.MethodGet, "/cohorts/"+cohort+"/mapping", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "/cohorts/{cohort}/mapping", "404"))
	if after-before != 2 {
		t.Errorf("expected 2 requests recorded under the route pattern, got %v", after-before)
	}
	if got := testutil.ToFloat64(HTTPRequestInFlight); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}

func TestDomainCountersRegistered(t *testing.T) {
	ChoiceSegmentsSkipped.WithLabelValues("data_dictionary").Inc()
	UnknownDrugLabels.WithLabelValues("BrCa").Inc()
	SynapseRequestsTotal.WithLabelValues("login", "ok").Inc()
	CohortRefreshTotal.WithLabelValues("BrCa", "success").Inc()

	if testutil.CollectAndCount(ChoiceSegmentsSkipped) == 0 {
		t.Error("expected choice segment counter to be collected")
	}
	if testutil.CollectAndCount(UnknownDrugLabels) == 0 {
		t.Error("expected unknown label counter to be collected")
	}
}
