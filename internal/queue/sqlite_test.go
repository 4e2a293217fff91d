package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

func newTestSQLite(t *testing.T, ts timesource.TimeSource, path string) Queue {
	cfg := newTestConfig(t)
	cfg.Queue.SQLite.Path = path
	q, err := NewSQLite(cfg, zap.NewNop(), tally.NoopScope, WithTimeSource(ts))
	testutil.Require(t).NoError(err)
	return q
}

func TestSQLite_EnqueueDedup(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestSQLite(t, ts, filepath.Join(t.TempDir(), "queue.db"))
	defer q.Close()
	ctx := context.Background()

	first, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.False(first.Deduplicated)

	second, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.True(second.Deduplicated)
	require.Equal(first.DedupKey, second.DedupKey)
}

func TestSQLite_ClaimAndComplete(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestSQLite(t, ts, filepath.Join(t.TempDir(), "queue.db"))
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.TypeRoundResults, claimed.Type)
	require.Equal(task.StatusActive, claimed.Status)
	require.Equal(1, claimed.Attempt)

	require.NoError(q.ReportSuccess(ctx, claimed))
	require.ErrorIs(q.ReportSuccess(ctx, claimed), ErrAlreadyTerminal)

	counts, err := q.Counts(ctx)
	require.NoError(err)
	require.Equal(1, counts.Completed)

	// A completed row does not block a fresh instance of the same identity.
	handle, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.False(handle.Deduplicated)
}

func TestSQLite_RetryBackoff(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestSQLite(t, ts, filepath.Join(t.TempDir(), "queue.db"))
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportFailure(ctx, claimed, xerrors.New("provider down")))

	_, err = claimWithTimeout(q, 50*time.Millisecond)
	require.Error(err)

	ts.Update(testutil.MustTime("2024-01-13T15:01:00Z"))
	retried, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(2, retried.Attempt)
}

func TestSQLite_SubjectRoundTrip(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestSQLite(t, ts, filepath.Join(t.TempDir(), "queue.db"))
	defer q.Close()
	ctx := context.Background()

	subject := task.RoundSubject(15).WithEntry(77)
	_, err := q.Enqueue(ctx, Request{
		Type:    task.TypeEntryPicks,
		Subject: subject,
		Source:  task.SourceCascade,
	})
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(subject, claimed.Subject)
}

func TestSQLite_RecoverActiveOnRestart(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	q := newTestSQLite(t, ts, path)
	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.StatusActive, claimed.Status)

	// Simulate a crash: close without reporting an outcome.
	require.NoError(q.Close())

	reopened := newTestSQLite(t, ts, path)
	defer reopened.Close()

	recovered, err := claimWithTimeout(reopened, time.Second)
	require.NoError(err)
	require.Equal(claimed.DedupKey, recovered.DedupKey)
	require.Equal(2, recovered.Attempt)
}
