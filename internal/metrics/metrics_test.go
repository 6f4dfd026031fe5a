package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopMetrics(t *testing.T) {
	var m Recorder = Noop{}
	m.ObserveBatch(3, OutcomeOK, time.Millisecond)
	m.AddSignedURLs(2)
	m.ObserveRequest("/graphql", "200", time.Millisecond)
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProm("crystal_snapshots", reg)

	m.ObserveBatch(3, OutcomeOK, 5*time.Millisecond)
	m.ObserveBatch(1, OutcomeSigningError, time.Millisecond)
	m.AddSignedURLs(4)
	m.ObserveRequest("/graphql", "200", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(OutcomeSigningError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.signedURLs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/graphql", "200")))

	count, err := testutil.GatherAndCount(reg, "crystal_snapshots_batch_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProm("crystal_snapshots", reg)
	m.AddSignedURLs(1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crystal_snapshots_signed_urls_total 1")
}
