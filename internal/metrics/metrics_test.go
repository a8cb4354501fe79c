package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	EnableBusinessMetrics(true)
	defer EnableBusinessMetrics(false)
	initializeHTTPMetrics()

	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/api/views/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/api/views/{id}", "418")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/views/"+id, nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestDisabledMetricsRecordNothing(t *testing.T) {
	EnableBusinessMetrics(false)
	initializeFeedMetrics()

	failures := sourceFetchFailures.WithLabelValues("ABSENCE")
	before := testutil.ToFloat64(failures)
	RecordSourceFetch("ABSENCE", 0, time.Millisecond, errors.New("down"))
	assert.Equal(t, before, testutil.ToFloat64(failures))
}

func TestRecordSourceFetchAndCommand(t *testing.T) {
	EnableBusinessMetrics(true)
	defer EnableBusinessMetrics(false)
	initializeFeedMetrics()

	failures := sourceFetchFailures.WithLabelValues("GENERIC")
	items := sourceItemsFetched.WithLabelValues("GENERIC")
	ok := commandsTotal.WithLabelValues("GENERIC", "APPROVE", "success")
	f0, i0, c0 := testutil.ToFloat64(failures), testutil.ToFloat64(items), testutil.ToFloat64(ok)

	RecordSourceFetch("GENERIC", 3, time.Millisecond, nil)
	RecordSourceFetch("GENERIC", 0, time.Millisecond, errors.New("timeout"))
	RecordCommand("GENERIC", "APPROVE", "success")

	assert.Equal(t, f0+1, testutil.ToFloat64(failures))
	assert.Equal(t, i0+3, testutil.ToFloat64(items))
	assert.Equal(t, c0+1, testutil.ToFloat64(ok))
}

func TestHandlerExposesRegistry(t *testing.T) {
	EnableBusinessMetrics(true)
	defer EnableBusinessMetrics(false)
	RecordCacheLookup(true)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "portal_feed_cache_lookups_total"))
}
