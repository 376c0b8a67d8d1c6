package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(false)

	m.RoleAssignments.WithLabelValues("admin").Inc()
	m.RoleAssignments.WithLabelValues("member").Add(2)
	m.AccessDecisions.WithLabelValues("librarian", "denied").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleAssignments.WithLabelValues("admin")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RoleAssignments.WithLabelValues("member")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDecisions.WithLabelValues("librarian", "denied")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(false)
	m.CatalogRequests.WithLabelValues("list_books", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `library_portal_catalog_requests_total{operation="list_books",outcome="ok"} 1`)
}
