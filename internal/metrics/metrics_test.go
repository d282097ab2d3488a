package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaugesAndCounters(t *testing.T) {
	Init()

	SetPendingJobs(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(pendingJobs))
	SetPendingJobs(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(pendingJobs))

	SetStaleRunningJobs(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(staleRunningJobs))

	before := testutil.ToFloat64(jobsSucceededTotal)
	AddSucceeded(3)
	AddSucceeded(-5) // negative deltas must be ignored
	assert.Equal(t, before+3, testutil.ToFloat64(jobsSucceededTotal))

	beforeFailed := testutil.ToFloat64(jobsFailedTotal)
	AddFailed(2)
	AddFailed(0)
	assert.Equal(t, beforeFailed+2, testutil.ToFloat64(jobsFailedTotal))

	beforeConflicts := testutil.ToFloat64(claimConflictsTotal)
	ObserveClaimConflict()
	assert.Equal(t, beforeConflicts+1, testutil.ToFloat64(claimConflictsTotal))
}

func TestObserveJobAdvancesOutcomeCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(jobsSucceededTotal)
	ObserveJob("succeeded", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsSucceededTotal))

	beforeFailed := testutil.ToFloat64(jobsFailedTotal)
	ObserveJob("failed", time.Second)
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(jobsFailedTotal))

	// A noop run records duration only.
	beforeNoop := testutil.ToFloat64(jobsSucceededTotal)
	ObserveJob("noop", time.Millisecond)
	assert.Equal(t, beforeNoop, testutil.ToFloat64(jobsSucceededTotal))
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	SetPendingJobs(4)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pending_jobs")
	assert.Contains(t, body, "jobs_succeeded_total")
	assert.Contains(t, body, "jobs_failed_total")
}

func TestObserveHTTPRequest(t *testing.T) {
	Init()

	ObserveHTTPRequest(http.MethodGet, "/v1/jobs/{job_id}", http.StatusOK, 25*time.Millisecond)

	counter, err := httpRequestsTotal.GetMetricWithLabelValues(http.MethodGet, "200")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, testutil.ToFloat64(counter), 1.0)
}
