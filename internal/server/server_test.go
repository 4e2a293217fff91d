package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

func newTestServer(t *testing.T) (*Server, queue.Queue) {
	require := testutil.Require(t)
	cfg, err := config.New(config.WithEnvironment(config.EnvLocal))
	require.NoError(err)
	cfg.Queue.ClaimPollInterval = 5 * time.Millisecond

	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := queue.NewMemory(cfg, zap.NewNop(), tally.NoopScope, queue.WithTimeSource(ts))
	return New(cfg, zap.NewNop(), tally.NoopScope, q), q
}

func postTask(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewBufferString(body))
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHealth(t *testing.T) {
	require := testutil.Require(t)
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	require.Equal(http.StatusOK, recorder.Code)
}

func TestEnqueueTask(t *testing.T) {
	require := testutil.Require(t)
	s, q := newTestServer(t)

	recorder := postTask(t, s, `{"type": "round-results", "round": 20}`)
	require.Equal(http.StatusOK, recorder.Code)

	var res enqueueResponse
	require.NoError(json.NewDecoder(recorder.Body).Decode(&res))
	require.Equal("round-results:round=20", res.DedupKey)
	require.False(res.Deduplicated)

	counts, err := q.Counts(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NoError(err)
	require.Equal(1, counts.Waiting)

	// Manual submission dedups against the queued instance.
	recorder = postTask(t, s, `{"type": "round-results", "round": 20}`)
	require.Equal(http.StatusOK, recorder.Code)
	require.NoError(json.NewDecoder(recorder.Body).Decode(&res))
	require.True(res.Deduplicated)
}

func TestEnqueueTask_InvalidType(t *testing.T) {
	require := testutil.Require(t)
	s, _ := newTestServer(t)

	recorder := postTask(t, s, `{"type": "unknown"}`)
	require.Equal(http.StatusBadRequest, recorder.Code)

	var res errorResponse
	require.NoError(json.NewDecoder(recorder.Body).Decode(&res))
	require.Contains(res.Error, "invalid task type")
}

func TestEnqueueTask_MalformedBody(t *testing.T) {
	require := testutil.Require(t)
	s, _ := newTestServer(t)

	recorder := postTask(t, s, `{`)
	require.Equal(http.StatusBadRequest, recorder.Code)
}

func TestEnqueueTask_MethodNotAllowed(t *testing.T) {
	require := testutil.Require(t)
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	require.Equal(http.StatusMethodNotAllowed, recorder.Code)
}

func TestCounts(t *testing.T) {
	require := testutil.Require(t)
	s, _ := newTestServer(t)

	recorder := postTask(t, s, `{"type": "live-scores", "round": 15}`)
	require.Equal(http.StatusOK, recorder.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/counts", nil)
	countsRecorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(countsRecorder, req)
	require.Equal(http.StatusOK, countsRecorder.Code)

	var counts queue.Counts
	require.NoError(json.NewDecoder(countsRecorder.Body).Decode(&counts))
	require.Equal(1, counts.Waiting)
}
