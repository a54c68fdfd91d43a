package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.BookingOutcome("committed")
	m.Compensation("create_failed")
	m.Materialized()
	m.OrphanHandled("released")
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountersAreExposed(t *testing.T) {
	m := New()

	m.BookingOutcome("committed")
	m.BookingOutcome("already_booked")
	m.BookingOutcome("already_booked")
	m.Materialized()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingAttempts.WithLabelValues("already_booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.materializations))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "salon_booking_attempts_total"))
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	assert.NotSame(t, a.Registry(), b.Registry())
}
