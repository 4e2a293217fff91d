package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/cascade"
	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type (
	// recordingHandler counts invocations and fails the first failures
	// attempts for a dedup key before succeeding.
	recordingHandler struct {
		taskType task.Type

		mu       sync.Mutex
		failures map[string]int
		panics   map[string]bool
		handled  map[string]int
	}

	nopEntryLister struct{}
)

func (l nopEntryLister) ListEntries(_ context.Context) ([]fpl.Entry, error) {
	return nil, nil
}

func newRecordingHandler(taskType task.Type) *recordingHandler {
	return &recordingHandler{
		taskType: taskType,
		failures: make(map[string]int),
		panics:   make(map[string]bool),
		handled:  make(map[string]int),
	}
}

func (h *recordingHandler) Type() task.Type {
	return h.taskType
}

func (h *recordingHandler) Handle(_ context.Context, t *task.Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled[t.DedupKey]++
	if h.panics[t.DedupKey] {
		panic("handler exploded")
	}
	if h.failures[t.DedupKey] > 0 {
		h.failures[t.DedupKey]--
		return xerrors.New("transient provider error")
	}
	return nil
}

func (h *recordingHandler) attempts(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled[key]
}

type executorHarness struct {
	queue    queue.Queue
	executor *Executor
	handlers map[task.Type]*recordingHandler
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, ts *timesource.EventTimeSource, workers int) *executorHarness {
	require := testutil.Require(t)

	cfg, err := config.New(config.WithEnvironment(config.EnvLocal))
	require.NoError(err)
	cfg.Queue.ClaimPollInterval = 5 * time.Millisecond
	cfg.Queue.BackoffBase = time.Millisecond

	q := queue.NewMemory(cfg, zap.NewNop(), tally.NoopScope, queue.WithTimeSource(ts))
	engine := cascade.NewEngine(zap.NewNop(), tally.NoopScope, q, nopEntryLister{})

	handlers := make(map[task.Type]*recordingHandler)
	handlerList := make([]Handler, 0, len(task.AllTypes()))
	for _, taskType := range task.AllTypes() {
		handler := newRecordingHandler(taskType)
		handlers[taskType] = handler
		handlerList = append(handlerList, handler)
	}

	executor, err := New(zap.NewNop(), tally.NoopScope, ts, q, engine, handlerList, workers)
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	t.Cleanup(func() {
		cancel()
		executor.Wait()
	})

	return &executorHarness{
		queue:    q,
		executor: executor,
		handlers: handlers,
		cancel:   cancel,
	}
}

// waitForCounts polls until the queue reaches the expected terminal counts.
func waitForCounts(t *testing.T, q queue.Queue, completed int, failed int) queue.Counts {
	require := testutil.Require(t)
	deadline := time.Now().Add(5 * time.Second)
	for {
		counts, err := q.Counts(context.Background())
		require.NoError(err)
		if counts.Completed >= completed && counts.Failed >= failed {
			return counts
		}
		require.True(time.Now().Before(deadline), "timed out waiting for counts: %+v", counts)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExecutor_RegistryValidation(t *testing.T) {
	require := testutil.Require(t)
	cfg, err := config.New(config.WithEnvironment(config.EnvLocal))
	require.NoError(err)
	ts := timesource.NewEventTimeSource()
	q := queue.NewMemory(cfg, zap.NewNop(), tally.NoopScope)
	engine := cascade.NewEngine(zap.NewNop(), tally.NoopScope, q, nopEntryLister{})

	// Missing handlers.
	_, err = New(zap.NewNop(), tally.NoopScope, ts, q, engine, nil, 1)
	require.Error(err)

	// Duplicate handler.
	handlers := make([]Handler, 0, len(task.AllTypes())+1)
	for _, taskType := range task.AllTypes() {
		handlers = append(handlers, newRecordingHandler(taskType))
	}
	handlers = append(handlers, newRecordingHandler(task.TypeLiveScores))
	_, err = New(zap.NewNop(), tally.NoopScope, ts, q, engine, handlers, 1)
	require.Error(err)
}

func TestExecutor_SuccessTriggersCascade(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	h := newHarness(t, ts, 2)
	ctx := context.Background()

	_, err := h.queue.Enqueue(ctx, queue.Request{
		Type:    task.TypeRoundResults,
		Subject: task.RoundSubject(20),
		Source:  task.SourceCron,
	})
	require.NoError(err)

	// Root plus the five dependents it expands into.
	waitForCounts(t, h.queue, 6, 0)
	require.Equal(1, h.handlers[task.TypePointsRace].attempts("points-race:round=20"))
	require.Equal(1, h.handlers[task.TypeBattleRace].attempts("battle-race:round=20"))
	require.Equal(1, h.handlers[task.TypeKnockout].attempts("knockout:round=20"))
	require.Equal(1, h.handlers[task.TypePostTransfers].attempts("post-transfers:round=20"))
	require.Equal(1, h.handlers[task.TypeCupResults].attempts("cup-results:round=20"))
}

func TestExecutor_RetriesThenSucceeds(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	h := newHarness(t, ts, 1)
	ctx := context.Background()

	key := task.Key(task.TypeLiveScores, task.RoundSubject(15), time.Time{})
	h.handlers[task.TypeLiveScores].failures[key] = 2

	_, err := h.queue.Enqueue(ctx, queue.Request{
		Type:    task.TypeLiveScores,
		Subject: task.RoundSubject(15),
		Source:  task.SourceCron,
		Options: queue.Options{MaxAttempts: 3},
	})
	require.NoError(err)

	// Backoff delays are against event time; march it forward so retries
	// become claimable.
	go func() {
		now := testutil.MustTime("2024-01-13T15:00:00Z")
		for i := 0; i < 200; i++ {
			now = now.Add(time.Second)
			ts.Update(now)
			time.Sleep(5 * time.Millisecond)
		}
	}()

	// Root live-scores completes after 3 attempts, then its live-summary
	// dependent completes: exactly one cascade expansion.
	counts := waitForCounts(t, h.queue, 2, 0)
	require.Equal(2, counts.Completed)
	require.Equal(0, counts.Failed)
	require.Equal(3, h.handlers[task.TypeLiveScores].attempts(key))
	require.Equal(1, h.handlers[task.TypeLiveSummary].attempts("live-summary:round=15"))
}

func TestExecutor_PanicIsFailure(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	h := newHarness(t, ts, 1)
	ctx := context.Background()

	key := task.Key(task.TypeRoundFixtures, task.Subject{}, time.Time{})
	h.handlers[task.TypeRoundFixtures].panics[key] = true

	_, err := h.queue.Enqueue(ctx, queue.Request{
		Type:    task.TypeRoundFixtures,
		Source:  task.SourceCron,
		Options: queue.Options{MaxAttempts: 1},
	})
	require.NoError(err)

	counts := waitForCounts(t, h.queue, 0, 1)
	require.Equal(1, counts.Failed)
	require.Equal(1, h.handlers[task.TypeRoundFixtures].attempts(key))
}

func TestExecutor_FanOutFailureIsIsolated(t *testing.T) {
	require := testutil.Require(t)
	ts := timesource.NewEventTimeSource().Update(testutil.MustTime("2024-01-13T15:00:00Z"))
	h := newHarness(t, ts, 2)
	ctx := context.Background()

	// One of the five fan-out tasks fails terminally; the other four must
	// complete unaffected.
	h.handlers[task.TypeKnockout].failures["knockout:round=20"] = 1

	reqs := make([]queue.Request, 0, 5)
	for _, taskType := range []task.Type{
		task.TypePointsRace,
		task.TypeBattleRace,
		task.TypeKnockout,
		task.TypePostTransfers,
		task.TypeCupResults,
	} {
		reqs = append(reqs, queue.Request{
			Type:    taskType,
			Subject: task.RoundSubject(20),
			Source:  task.SourceCron,
			Options: queue.Options{MaxAttempts: 1},
		})
	}

	_, err := h.queue.EnqueueBatch(ctx, reqs)
	require.NoError(err)

	counts := waitForCounts(t, h.queue, 4, 1)
	require.Equal(4, counts.Completed)
	require.Equal(1, counts.Failed)
}
