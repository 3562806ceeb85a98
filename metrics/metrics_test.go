package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsAndExposes(t *testing.T) {
	r := metrics.New()
	r.SetRecorded("group")
	r.SetRecorded("group")
	r.MatchCompleted("final")
	r.TournamentCompleted()
	r.ObserveHTTP(http.MethodGet, "/api/matches/{matchID}", http.StatusOK, 5*time.Millisecond)

	n, err := testutil.GatherAndCount(r.Registry(), "tournament_sets_recorded_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tournament_sets_recorded_total{stage="group"} 2`))
	assert.True(t, strings.Contains(body, `tournament_matches_completed_total{stage="final"} 1`))
	assert.True(t, strings.Contains(body, "tournament_http_requests_total"))
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *metrics.Recorder
	assert.NotPanics(t, func() {
		r.SetRecorded("group")
		r.NotificationFailed("group.updated")
		r.NotificationDropped("group.updated")
		r.TxRetried()
		r.ObserveHTTP(http.MethodGet, "/", 200, time.Millisecond)
	})
	assert.Nil(t, r.Registry())
}
