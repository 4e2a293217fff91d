package sync

import (
	"context"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/instrument"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/utils/retry"
)

type (
	// baseHandler carries the collaborators shared by every sync handler and
	// wraps execution with per-handler metrics. Handlers stay thin: they
	// resolve the subject, call the provider and the repository, and reduce
	// business-rule skips to a nil return.
	baseHandler struct {
		taskType   task.Type
		logger     *zap.Logger
		call       instrument.Call
		client     fpl.Client
		repository fpl.Repository
	}

	handlerFn func(ctx context.Context, t *task.Task) error
)

const handlerScopeName = "handler"

func newBaseHandler(
	taskType task.Type,
	logger *zap.Logger,
	metrics tally.Scope,
	client fpl.Client,
	repository fpl.Repository,
) baseHandler {
	logger = log.WithPackage(logger).With(zap.String("handler", string(taskType)))
	return baseHandler{
		taskType:   taskType,
		logger:     logger,
		call:       instrument.NewCall(metrics.SubScope(handlerScopeName), string(taskType)),
		client:     client,
		repository: repository,
	}
}

func (h baseHandler) Type() task.Type {
	return h.taskType
}

func (h baseHandler) run(ctx context.Context, t *task.Task, fn handlerFn) error {
	return h.call.Instrument(ctx, func(ctx context.Context) error {
		return fn(ctx, t)
	}, instrument.WithLoggerFields(zap.String("dedup_key", t.DedupKey)))
}

// resolveRound returns the round the task operates on, falling back to the
// provider's current round when the subject does not pin one. A missing
// current round (between seasons) is a skip, reported as (0, false, nil).
func (h baseHandler) resolveRound(ctx context.Context, t *task.Task) (fpl.RoundID, bool, error) {
	if t.Subject.Round != 0 {
		return t.Subject.Round, true, nil
	}

	round, err := retry.WrapWithResult(ctx, func(ctx context.Context) (*fpl.Round, error) {
		return h.client.GetCurrentRound(ctx)
	}, retry.WithLogger(h.logger))
	if err != nil {
		if xerrors.Is(err, fpl.ErrNotFound) {
			h.logger.Info("no current round, skipping")
			return 0, false, nil
		}
		return 0, false, xerrors.Errorf("failed to resolve current round: %w", err)
	}
	return round.ID, true, nil
}
