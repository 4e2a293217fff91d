package queue

import (
	"context"
	"testing"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

func newTestConfig(t *testing.T) *config.Config {
	cfg, err := config.New(config.WithEnvironment(config.EnvLocal))
	testutil.Require(t).NoError(err)
	cfg.Queue.ClaimPollInterval = 5 * time.Millisecond
	return cfg
}

func newTestMemory(t *testing.T, ts timesource.TimeSource) Queue {
	return NewMemory(newTestConfig(t), zap.NewNop(), tally.NoopScope, WithTimeSource(ts))
}

func claimWithTimeout(q Queue, timeout time.Duration) (*task.Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.Claim(ctx)
}

func roundResultsRequest(roundID fpl.RoundID) Request {
	return Request{
		Type:    task.TypeRoundResults,
		Subject: task.RoundSubject(roundID),
		Source:  task.SourceCron,
	}
}

func TestEnqueue_Dedup(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.False(first.Deduplicated)

	// A second enqueue with identical dedup-determining inputs is a no-op
	// returning the existing handle.
	second, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.True(second.Deduplicated)
	require.Equal(first.DedupKey, second.DedupKey)

	counts, err := q.Counts(ctx)
	require.NoError(err)
	require.Equal(1, counts.Waiting)
}

func TestEnqueue_DedupWhileActive(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.StatusActive, claimed.Status)

	// Still deduplicated while the first instance is active.
	handle, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.True(handle.Deduplicated)
}

func TestEnqueue_NewInstanceAfterCompletion(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportSuccess(ctx, claimed))

	// Identity is freed once the previous instance reached a terminal state.
	handle, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)
	require.False(handle.Deduplicated)
}

func TestEnqueue_TimeBucket(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	request := func(bucket time.Time) Request {
		return Request{
			Type:    task.TypeLiveScores,
			Subject: task.RoundSubject(15),
			Source:  task.SourceCron,
			Options: Options{TimeBucket: bucket},
		}
	}

	first, err := q.Enqueue(ctx, request(testutil.MustTime("2024-01-13T15:00:00Z")))
	require.NoError(err)
	require.False(first.Deduplicated)

	same, err := q.Enqueue(ctx, request(testutil.MustTime("2024-01-13T15:00:00Z")))
	require.NoError(err)
	require.True(same.Deduplicated)

	next, err := q.Enqueue(ctx, request(testutil.MustTime("2024-01-13T15:02:00Z")))
	require.NoError(err)
	require.False(next.Deduplicated)
}

func TestEnqueue_InvalidType(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)

	_, err := q.Enqueue(context.Background(), Request{
		Type:   task.Type("unknown"),
		Source: task.SourceManual,
	})
	require.Error(err)
}

func TestClaim_PriorityThenFIFO(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Request{
		Type:    task.TypeRoundFixtures,
		Source:  task.SourceCron,
		Options: Options{Priority: 0},
	})
	require.NoError(err)
	_, err = q.Enqueue(ctx, Request{
		Type:    task.TypeLiveScores,
		Subject: task.RoundSubject(15),
		Source:  task.SourceCron,
		Options: Options{Priority: 10},
	})
	require.NoError(err)

	first, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.TypeLiveScores, first.Type)

	second, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.TypeRoundFixtures, second.Type)
}

func TestClaim_Delay(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Request{
		Type:    task.TypeRoundPicks,
		Subject: task.RoundSubject(15),
		Source:  task.SourceCron,
		Options: Options{Delay: time.Minute},
	})
	require.NoError(err)

	_, err = claimWithTimeout(q, 50*time.Millisecond)
	require.Error(err)

	counts, err := q.Counts(ctx)
	require.NoError(err)
	require.Equal(1, counts.Delayed)

	ts.Update(testutil.MustTime("2024-01-13T15:01:00Z"))
	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(task.TypeRoundPicks, claimed.Type)
}

func TestReportFailure_RetryWithBackoff(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(1, claimed.Attempt)

	require.NoError(q.ReportFailure(ctx, claimed, xerrors.New("provider down")))

	// Not ready until the backoff elapses (default base 60s).
	_, err = claimWithTimeout(q, 50*time.Millisecond)
	require.Error(err)

	ts.Update(testutil.MustTime("2024-01-13T15:01:00Z"))
	retried, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(2, retried.Attempt)
	require.Equal(claimed.DedupKey, retried.DedupKey)
}

func TestReportFailure_BackoffDoubles(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportFailure(ctx, claimed, xerrors.New("provider down")))

	ts.Update(testutil.MustTime("2024-01-13T15:01:00Z"))
	second, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportFailure(ctx, second, xerrors.New("provider down")))

	// Second retry backs off for 2x the base.
	ts.Update(testutil.MustTime("2024-01-13T15:02:00Z"))
	_, err = claimWithTimeout(q, 50*time.Millisecond)
	require.Error(err)

	ts.Update(testutil.MustTime("2024-01-13T15:03:00Z"))
	third, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.Equal(3, third.Attempt)
}

func TestReportFailure_AttemptsExhausted(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	cfg := newTestConfig(t)
	cfg.Queue.MaxAttempts = 1
	q := NewMemory(cfg, zap.NewNop(), tally.NoopScope, WithTimeSource(ts))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportFailure(ctx, claimed, xerrors.New("provider down")))

	counts, err := q.Counts(ctx)
	require.NoError(err)
	require.Equal(1, counts.Failed)
	require.Equal(0, counts.Waiting)
	require.Equal(0, counts.Delayed)
}

func TestReportSuccess_Duplicate(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, roundResultsRequest(20))
	require.NoError(err)

	claimed, err := claimWithTimeout(q, time.Second)
	require.NoError(err)
	require.NoError(q.ReportSuccess(ctx, claimed))

	err = q.ReportSuccess(ctx, claimed)
	require.ErrorIs(err, ErrAlreadyTerminal)
}

func TestEnqueueBatch(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)
	ctx := context.Background()

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = Request{
			Type:    task.TypeEntryPicks,
			Subject: task.RoundSubject(15).WithEntry(fpl.EntryID(i + 1)),
			Source:  task.SourceCascade,
		}
	}

	handles, err := q.EnqueueBatch(ctx, reqs)
	require.NoError(err)
	require.Len(handles, 5)

	seen := make(map[string]bool)
	for _, handle := range handles {
		require.NotNil(handle)
		require.False(handle.Deduplicated)
		require.False(seen[handle.DedupKey])
		seen[handle.DedupKey] = true
	}

	counts, err := q.Counts(ctx)
	require.NoError(err)
	require.Equal(5, counts.Waiting)
}

func TestEnqueueBatch_PartialFailure(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	q := newTestMemory(t, ts)

	reqs := []Request{
		{
			Type:    task.TypeEntryPicks,
			Subject: task.RoundSubject(15).WithEntry(1),
			Source:  task.SourceCascade,
		},
		{
			Type:   task.Type("unknown"),
			Source: task.SourceCascade,
		},
		{
			Type:    task.TypeEntryPicks,
			Subject: task.RoundSubject(15).WithEntry(2),
			Source:  task.SourceCascade,
		},
	}

	handles, err := q.EnqueueBatch(context.Background(), reqs)
	require.Error(err)

	var batchErr *BatchError
	require.ErrorAs(err, &batchErr)
	require.Len(batchErr.Errs, 1)
	require.Contains(batchErr.Errs, 1)

	// Siblings are unaffected by the failed request.
	require.NotNil(handles[0])
	require.Nil(handles[1])
	require.NotNil(handles[2])
}
