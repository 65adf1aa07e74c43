package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependentPerInstance(t *testing.T) {
	a, b := New(), New()

	a.CacheLookups.WithLabelValues("hit").Inc()
	a.CacheLookups.WithLabelValues("hit").Inc()
	a.BlocksIndexed.Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.BlocksIndexed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BlocksIndexed))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Warnings.WithLabelValues("very similar").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `codesense_similarity_warnings_total{classification="very similar"} 1`)
}
