package cron

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

type (
	// trigger is the shared plumbing of the scheduling gates: load the
	// temporal snapshot, evaluate a window predicate, and enqueue work when
	// it holds. A failed load or a false predicate skips the tick without
	// escalating; only enqueue failures surface, abandoning the tick so the
	// next one retries.
	trigger struct {
		name      string
		logger    *zap.Logger
		loader    ContextLoader
		evaluator *window.Evaluator
		queue     queue.Queue
	}
)

func newTrigger(
	name string,
	logger *zap.Logger,
	loader ContextLoader,
	evaluator *window.Evaluator,
	q queue.Queue,
) trigger {
	return trigger{
		name:      name,
		logger:    log.WithPackage(logger).With(zap.String(taskTag, name)),
		loader:    loader,
		evaluator: evaluator,
		queue:     q,
	}
}

// gate loads the window context and evaluates the predicate. It returns
// (ctx, false, nil) when the tick should be skipped.
func (t trigger) gate(ctx context.Context, predicate func(window.Context) bool) (window.Context, bool, error) {
	windowCtx, err := t.loader.Load(ctx)
	if err != nil {
		// Condition evaluation failure is a skip, not an error.
		t.logger.Warn("failed to load window context, skipping tick", zap.Error(err))
		return window.Context{}, false, nil
	}

	if !predicate(windowCtx) {
		t.logger.Debug("window predicate is false, skipping tick")
		return windowCtx, false, nil
	}
	return windowCtx, true, nil
}

func (t trigger) enqueue(ctx context.Context, req queue.Request) error {
	handle, err := t.queue.Enqueue(ctx, req)
	if err != nil {
		return xerrors.Errorf("failed to enqueue %v task: %w", req.Type, err)
	}

	if handle.Deduplicated {
		t.logger.Debug("task already queued", zap.String("dedup_key", handle.DedupKey))
		return nil
	}
	t.logger.Info("enqueued task", zap.String("dedup_key", handle.DedupKey))
	return nil
}
