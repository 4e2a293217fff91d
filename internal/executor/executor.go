package executor

import (
	"context"
	"sync"

	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/cascade"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type (
	// Handler executes one task type. Handlers must be idempotent since a
	// retried task re-invokes them, and must reduce business-rule skips to a
	// nil return rather than an error.
	Handler interface {
		Type() task.Type
		Handle(ctx context.Context, t *task.Task) error
	}

	// Executor runs N workers claiming tasks from the queue, dispatching to
	// the registered handler, reporting the outcome, and expanding the
	// cascade on the finally-successful attempt.
	Executor struct {
		logger     *zap.Logger
		metrics    *executorMetrics
		timeSource timesource.TimeSource
		queue      queue.Queue
		cascade    *cascade.Engine
		handlers   map[task.Type]Handler
		workers    int

		started atomic.Bool
		wg      sync.WaitGroup
	}

	executorMetrics struct {
		scope     tally.Scope
		succeeded tally.Counter
		failed    tally.Counter
		panics    tally.Counter
	}
)

const executorScopeName = "executor"

func newExecutorMetrics(scope tally.Scope) *executorMetrics {
	scope = scope.SubScope(executorScopeName)
	return &executorMetrics{
		scope:     scope,
		succeeded: scope.Counter("succeeded"),
		failed:    scope.Counter("failed"),
		panics:    scope.Counter("panics"),
	}
}

// New builds an executor over the given handler set. The registry is closed:
// every declared task type must have exactly one handler, which is asserted
// here so a missing or duplicate registration fails at startup rather than at
// claim time.
func New(
	logger *zap.Logger,
	metrics tally.Scope,
	ts timesource.TimeSource,
	q queue.Queue,
	engine *cascade.Engine,
	handlers []Handler,
	workers int,
) (*Executor, error) {
	if workers <= 0 {
		return nil, xerrors.Errorf("invalid worker count: %v", workers)
	}

	registry := make(map[task.Type]Handler, len(handlers))
	for _, handler := range handlers {
		taskType := handler.Type()
		if !taskType.Valid() {
			return nil, xerrors.Errorf("handler registered for unknown task type: %v", taskType)
		}
		if _, ok := registry[taskType]; ok {
			return nil, xerrors.Errorf("duplicate handler for task type: %v", taskType)
		}
		registry[taskType] = handler
	}
	for _, taskType := range task.AllTypes() {
		if _, ok := registry[taskType]; !ok {
			return nil, xerrors.Errorf("no handler for task type: %v", taskType)
		}
	}

	return &Executor{
		logger:     log.WithPackage(logger),
		metrics:    newExecutorMetrics(metrics),
		timeSource: ts,
		queue:      q,
		cascade:    engine,
		handlers:   registry,
		workers:    workers,
	}, nil
}

// Start launches the worker pool. Workers exit when ctx is canceled; Wait
// blocks until they all have. Subsequent calls are no-ops.
func (e *Executor) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func(worker int) {
			defer e.wg.Done()
			e.runWorker(ctx, worker)
		}(i)
	}
	e.logger.Info("started executor", zap.Int("workers", e.workers))
}

func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) runWorker(ctx context.Context, worker int) {
	logger := e.logger.With(zap.Int("worker", worker))
	for {
		claimed, err := e.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("worker stopped")
				return
			}
			logger.Error("failed to claim task", zap.Error(err))
			continue
		}

		e.process(ctx, logger, claimed)
	}
}

func (e *Executor) process(ctx context.Context, logger *zap.Logger, t *task.Task) {
	start := e.timeSource.Now()
	err := e.handle(ctx, t)
	elapsed := e.timeSource.Now().Sub(start)

	taskScope := e.metrics.scope.Tagged(map[string]string{"type": string(t.Type)})
	taskScope.Timer("duration").Record(elapsed)

	if err != nil {
		e.metrics.failed.Inc(1)
		logger.Warn(
			"task attempt failed",
			zap.String("dedup_key", t.DedupKey),
			zap.Int("attempt", t.Attempt),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		if reportErr := e.queue.ReportFailure(ctx, t, err); reportErr != nil {
			logger.Error("failed to report task failure", zap.String("dedup_key", t.DedupKey), zap.Error(reportErr))
		}
		return
	}

	e.metrics.succeeded.Inc(1)
	logger.Info(
		"task completed",
		zap.String("dedup_key", t.DedupKey),
		zap.Int("attempt", t.Attempt),
		zap.Duration("duration", elapsed),
	)

	if reportErr := e.queue.ReportSuccess(ctx, t); reportErr != nil {
		// A duplicate report means another report already finalized this
		// instance; expanding again would only re-run the dedup logic.
		if xerrors.Is(reportErr, queue.ErrAlreadyTerminal) {
			logger.Debug("skipping cascade for duplicate success report", zap.String("dedup_key", t.DedupKey))
			return
		}
		logger.Error("failed to report task success", zap.String("dedup_key", t.DedupKey), zap.Error(reportErr))
		return
	}

	e.cascade.OnCompleted(ctx, t)
}

// handle dispatches to the registered handler, converting a panic into a
// failed attempt so one bad task cannot take a worker down.
func (e *Executor) handle(ctx context.Context, t *task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.panics.Inc(1)
			err = xerrors.Errorf("handler panic: %v", r)
		}
	}()

	handler, ok := e.handlers[t.Type]
	if !ok {
		return xerrors.Errorf("no handler for task type: %v", t.Type)
	}
	return handler.Handle(ctx, t)
}
