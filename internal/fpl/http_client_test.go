package fpl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/utils/retry"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
)

const bootstrapBody = `{"events": [{"id": 15, "deadline_time": "2024-01-12T18:30:00Z", "is_current": true, "finished": false}]}`

func newTestHTTPClient(server *httptest.Server) *httpClient {
	return &httpClient{
		baseURL: server.URL,
		client:  server.Client(),
		logger:  zap.NewNop(),
	}
}

func fastBackoff() retry.Backoff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestGetCurrentRound_TransientFailureIsRetried(t *testing.T) {
	require := testutil.Require(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls += 1
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(bootstrapBody))
	}))
	defer server.Close()

	client := newTestHTTPClient(server)
	round, err := retry.WrapWithResult(context.Background(), func(ctx context.Context) (*Round, error) {
		return client.GetCurrentRound(ctx)
	}, retry.WithBackoffFactory(fastBackoff))
	require.NoError(err)
	require.Equal(RoundID(15), round.ID)
	require.Equal(3, calls)
}

func TestGetCurrentRound_ClientErrorIsPermanent(t *testing.T) {
	require := testutil.Require(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls += 1
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestHTTPClient(server)
	_, err := retry.WrapWithResult(context.Background(), func(ctx context.Context) (*Round, error) {
		return client.GetCurrentRound(ctx)
	}, retry.WithBackoffFactory(fastBackoff))
	require.Error(err)
	require.Equal(1, calls)
}

func TestGetFixtures_RateLimitClassification(t *testing.T) {
	require := testutil.Require(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestHTTPClient(server)
	_, err := client.GetFixtures(context.Background(), RoundID(15))
	require.Error(err)

	var rateLimitErr *retry.RateLimitError
	require.True(xerrors.As(err, &rateLimitErr))
}

func TestGetFixtures_NetworkErrorIsRetryable(t *testing.T) {
	require := testutil.Require(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestHTTPClient(server)
	_, err := client.GetFixtures(context.Background(), RoundID(15))
	require.Error(err)

	var retryableErr *retry.RetryableError
	require.True(xerrors.As(err, &retryableErr))
}
