package queue

import (
	"context"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type (
	memoryQueue struct {
		logger       *zap.Logger
		metrics      *queueMetrics
		timeSource   timesource.TimeSource
		maxAttempts  int
		backoffBase  time.Duration
		pollInterval time.Duration

		mu        sync.Mutex
		items     map[string]*memoryItem
		seq       int64
		completed int
		failed    int
		closed    bool
	}

	memoryItem struct {
		task        task.Task
		backoffBase time.Duration
		seq         int64
	}

	queueMetrics struct {
		enqueued     tally.Counter
		deduplicated tally.Counter
		claimed      tally.Counter
		completed    tally.Counter
		retried      tally.Counter
		exhausted    tally.Counter
	}

	// Option customizes a queue backend, mostly for tests.
	Option func(o *options)

	options struct {
		timeSource timesource.TimeSource
	}
)

const (
	subScope = "queue"
)

var _ Queue = (*memoryQueue)(nil)

// WithTimeSource overrides the wall clock, used by tests to control delays.
func WithTimeSource(ts timesource.TimeSource) Option {
	return func(o *options) {
		o.timeSource = ts
	}
}

func newQueueMetrics(scope tally.Scope) *queueMetrics {
	scope = scope.SubScope(subScope)
	return &queueMetrics{
		enqueued:     scope.Counter("enqueued"),
		deduplicated: scope.Counter("deduplicated"),
		claimed:      scope.Counter("claimed"),
		completed:    scope.Counter("completed"),
		retried:      scope.Counter("retried"),
		exhausted:    scope.Counter("exhausted"),
	}
}

// NewMemory returns an in-process queue used in the local environment and in
// tests. It implements the same dedup and retry semantics as the durable
// backend but loses state on restart.
func NewMemory(cfg *config.Config, logger *zap.Logger, metrics tally.Scope, opts ...Option) Queue {
	o := &options{
		timeSource: timesource.NewRealTimeSource(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &memoryQueue{
		logger:       log.WithPackage(logger),
		metrics:      newQueueMetrics(metrics),
		timeSource:   o.timeSource,
		maxAttempts:  cfg.Queue.MaxAttempts,
		backoffBase:  cfg.Queue.BackoffBase,
		pollInterval: cfg.Queue.ClaimPollInterval,
		items:        make(map[string]*memoryItem),
	}
}

func (q *memoryQueue) Enqueue(_ context.Context, req Request) (*Handle, error) {
	if err := req.validate(); err != nil {
		return nil, xerrors.Errorf("failed to validate request: %w", err)
	}

	opts := defaulted(req.Options, q.maxAttempts, q.backoffBase)
	key := req.dedupKey()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	if _, ok := q.items[key]; ok {
		q.metrics.deduplicated.Inc(1)
		return &Handle{DedupKey: key, Deduplicated: true}, nil
	}

	now := q.timeSource.Now()
	t := task.Task{
		Type:        req.Type,
		Subject:     req.Subject,
		Source:      req.Source,
		DedupKey:    key,
		Status:      task.StatusWaiting,
		MaxAttempts: opts.MaxAttempts,
		Priority:    opts.Priority,
		EnqueuedAt:  now,
	}
	if opts.Delay > 0 {
		delayUntil := now.Add(opts.Delay)
		t.DelayUntil = &delayUntil
	}

	q.seq++
	q.items[key] = &memoryItem{
		task:        t,
		backoffBase: opts.BackoffBase,
		seq:         q.seq,
	}
	q.metrics.enqueued.Inc(1)
	q.logger.Debug(
		"enqueued task",
		zap.String("dedup_key", key),
		zap.String("source", string(req.Source)),
	)
	return &Handle{DedupKey: key}, nil
}

func (q *memoryQueue) EnqueueBatch(ctx context.Context, reqs []Request) ([]*Handle, error) {
	handles := make([]*Handle, len(reqs))
	errs := make(map[int]error)
	for i, req := range reqs {
		handle, err := q.Enqueue(ctx, req)
		if err != nil {
			errs[i] = err
			continue
		}
		handles[i] = handle
	}

	if len(errs) > 0 {
		return handles, &BatchError{Errs: errs}
	}
	return handles, nil
}

func (q *memoryQueue) Claim(ctx context.Context) (*task.Task, error) {
	for {
		claimed, err := q.tryClaim()
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			q.metrics.claimed.Inc(1)
			return claimed, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *memoryQueue) tryClaim() (*task.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	now := q.timeSource.Now()
	var best *memoryItem
	for _, item := range q.items {
		if item.task.Status != task.StatusWaiting {
			continue
		}
		if item.task.DelayUntil != nil && item.task.DelayUntil.After(now) {
			continue
		}
		if best == nil || claimBefore(item, best) {
			best = item
		}
	}

	if best == nil {
		return nil, nil
	}

	best.task.Status = task.StatusActive
	best.task.Attempt++
	claimed := best.task
	return &claimed, nil
}

// claimBefore orders ready tasks: higher priority first, then FIFO.
func claimBefore(a, b *memoryItem) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	return a.seq < b.seq
}

func (q *memoryQueue) ReportSuccess(_ context.Context, t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[t.DedupKey]
	if !ok || item.task.Status != task.StatusActive {
		return ErrAlreadyTerminal
	}

	delete(q.items, t.DedupKey)
	q.completed++
	q.metrics.completed.Inc(1)
	return nil
}

func (q *memoryQueue) ReportFailure(_ context.Context, t *task.Task, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[t.DedupKey]
	if !ok || item.task.Status != task.StatusActive {
		return ErrAlreadyTerminal
	}

	if item.task.Attempt >= item.task.MaxAttempts {
		delete(q.items, t.DedupKey)
		q.failed++
		q.metrics.exhausted.Inc(1)
		q.logger.Warn(
			"task failed terminally",
			zap.String("dedup_key", t.DedupKey),
			zap.Int("attempts", item.task.Attempt),
			zap.Error(cause),
		)
		return nil
	}

	delayUntil := q.timeSource.Now().Add(nextBackoff(item.backoffBase, item.task.Attempt))
	item.task.Status = task.StatusWaiting
	item.task.DelayUntil = &delayUntil
	q.metrics.retried.Inc(1)
	q.logger.Info(
		"task scheduled for retry",
		zap.String("dedup_key", t.DedupKey),
		zap.Int("attempt", item.task.Attempt),
		zap.Time("delay_until", delayUntil),
		zap.Error(cause),
	)
	return nil
}

func (q *memoryQueue) Counts(_ context.Context) (Counts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := Counts{
		Completed: q.completed,
		Failed:    q.failed,
	}
	now := q.timeSource.Now()
	for _, item := range q.items {
		switch {
		case item.task.Status == task.StatusActive:
			counts.Active++
		case item.task.DelayUntil != nil && item.task.DelayUntil.After(now):
			counts.Delayed++
		default:
			counts.Waiting++
		}
	}
	return counts, nil
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
