package cascade

import (
	"context"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
)

type (
	// Engine expands the cascade adjacency map when a root task completes.
	// Expansion is best effort: a dependent that fails to enqueue is logged
	// and skipped; siblings and the root's terminal status are unaffected.
	Engine struct {
		logger  *zap.Logger
		metrics *engineMetrics
		queue   queue.Queue
		entries fpl.EntryLister
	}

	engineMetrics struct {
		expanded tally.Counter
		errors   tally.Counter
	}
)

const engineScopeName = "cascade"

func NewEngine(logger *zap.Logger, metrics tally.Scope, q queue.Queue, entries fpl.EntryLister) *Engine {
	scope := metrics.SubScope(engineScopeName)
	return &Engine{
		logger: log.WithPackage(logger),
		metrics: &engineMetrics{
			expanded: scope.Counter("expanded"),
			errors:   scope.Counter("errors"),
		},
		queue:   q,
		entries: entries,
	}
}

// OnCompleted enqueues the dependents of the completed task. It must only be
// called for the finally-successful report of an attempt; the executor skips
// the call when the success report was a duplicate.
func (e *Engine) OnCompleted(ctx context.Context, t *task.Task) {
	def, ok := defs[t.Type]
	if !ok {
		return
	}

	reqs := make([]queue.Request, 0, len(def.Dependents))
	for _, dependent := range def.Dependents {
		reqs = append(reqs, queue.Request{
			Type:    dependent,
			Subject: t.Subject,
			Source:  task.SourceCascade,
		})
	}

	for _, dependent := range def.PerEntry {
		perEntry, err := e.perEntryRequests(ctx, t, dependent)
		if err != nil {
			// The per-entry branch is skipped but same-subject siblings
			// still expand.
			e.metrics.errors.Inc(1)
			e.logger.Error(
				"failed to resolve cascade fan-out entries",
				zap.String("root", string(t.Type)),
				zap.String("dependent", string(dependent)),
				zap.Error(err),
			)
			continue
		}
		reqs = append(reqs, perEntry...)
	}

	if len(reqs) == 0 {
		return
	}

	handles, err := e.queue.EnqueueBatch(ctx, reqs)
	if err != nil {
		var batchErr *queue.BatchError
		if !xerrors.As(err, &batchErr) {
			e.metrics.errors.Inc(1)
			e.logger.Error(
				"failed to enqueue cascade dependents",
				zap.String("root", string(t.Type)),
				zap.Error(err),
			)
			return
		}
		for i, itemErr := range batchErr.Errs {
			e.metrics.errors.Inc(1)
			e.logger.Error(
				"failed to enqueue cascade dependent",
				zap.String("root", string(t.Type)),
				zap.String("dependent", string(reqs[i].Type)),
				zap.Error(itemErr),
			)
		}
	}

	for _, handle := range handles {
		if handle == nil || handle.Deduplicated {
			continue
		}
		e.metrics.expanded.Inc(1)
	}
	e.logger.Debug(
		"expanded cascade",
		zap.String("root", string(t.Type)),
		zap.String("dedup_key", t.DedupKey),
		zap.Int("num_dependents", len(reqs)),
	)
}

func (e *Engine) perEntryRequests(ctx context.Context, t *task.Task, dependent task.Type) ([]queue.Request, error) {
	entries, err := e.entries.ListEntries(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to list entries: %w", err)
	}

	reqs := make([]queue.Request, len(entries))
	for i, entry := range entries {
		reqs[i] = queue.Request{
			Type:    dependent,
			Subject: t.Subject.WithEntry(entry.ID),
			Source:  task.SourceCascade,
		}
	}
	return reqs, nil
}
