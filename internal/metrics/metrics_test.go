package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(mux)

	counter := httpRequestsTotal.WithLabelValues("GET", "GET /items/{id}", "418")
	before := value(t, counter)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, before+3, value(t, counter))
}

func TestMiddlewareUnmatchedRoute(t *testing.T) {
	h := Middleware(http.NewServeMux())
	counter := httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before := value(t, counter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, value(t, counter))
}

func TestRecordUpload(t *testing.T) {
	ok := uploadFilesTotal.WithLabelValues("success")
	failed := uploadFilesTotal.WithLabelValues("error")
	okBefore, failedBefore := value(t, ok), value(t, failed)
	bytesBefore := value(t, uploadBytesTotal)

	RecordUpload(100, true)
	RecordUpload(50, false)

	assert.Equal(t, okBefore+1, value(t, ok))
	assert.Equal(t, failedBefore+1, value(t, failed))
	assert.Equal(t, bytesBefore+100, value(t, uploadBytesTotal))
}

func TestRecordArchiveOperation(t *testing.T) {
	counter := archiveOperationsTotal.WithLabelValues("put", "error")
	before := value(t, counter)

	RecordArchiveOperation("put", 10*time.Millisecond, false)

	assert.Equal(t, before+1, value(t, counter))
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetProjectsDiscovered(7)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docbrowser_projects_discovered 7")
}
