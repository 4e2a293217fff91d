package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type sqliteQueue struct {
	db           *sql.DB
	logger       *zap.Logger
	metrics      *queueMetrics
	timeSource   timesource.TimeSource
	maxAttempts  int
	backoffBase  time.Duration
	pollInterval time.Duration
}

var _ Queue = (*sqliteQueue)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dedup_key TEXT NOT NULL,
	type TEXT NOT NULL,
	subject TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	attempt INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	backoff_base_ms INTEGER NOT NULL,
	enqueued_at INTEGER NOT NULL,
	delay_until INTEGER,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_dedup
	ON tasks(dedup_key) WHERE status IN ('waiting', 'active');
CREATE INDEX IF NOT EXISTS idx_tasks_claim
	ON tasks(status, priority, id);
`

// NewSQLite returns the durable queue backend. A partial unique index over
// non-terminal rows makes dedup-checked enqueue atomic; terminal rows are
// kept for counts and do not block re-enqueueing the same identity.
func NewSQLite(cfg *config.Config, logger *zap.Logger, metrics tally.Scope, opts ...Option) (Queue, error) {
	o := &options{
		timeSource: timesource.NewRealTimeSource(),
	}
	for _, opt := range opts {
		opt(o)
	}

	path := cfg.Queue.SQLite.Path
	if path == "" {
		return nil, xerrors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, xerrors.Errorf("failed to create queue directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.Queue.SQLite.BusyTimeout > 0 {
		ms := cfg.Queue.SQLite.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("failed to migrate queue schema: %w", err)
	}

	q := &sqliteQueue{
		db:           db,
		logger:       log.WithPackage(logger),
		metrics:      newQueueMetrics(metrics),
		timeSource:   o.timeSource,
		maxAttempts:  cfg.Queue.MaxAttempts,
		backoffBase:  cfg.Queue.BackoffBase,
		pollInterval: cfg.Queue.ClaimPollInterval,
	}

	// Tasks claimed by a previous run are orphaned after a restart; return
	// them to the waiting state so they get re-attempted.
	if err := q.recoverActive(context.Background()); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("failed to recover active tasks: %w", err)
	}

	q.logger.Info("initialized sqlite queue", zap.String("path", path))
	return q, nil
}

func (q *sqliteQueue) recoverActive(ctx context.Context) error {
	now := q.timeSource.Now().UnixMilli()
	result, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'waiting', updated_at = ? WHERE status = 'active'`,
		now,
	)
	if err != nil {
		return err
	}
	if recovered, err := result.RowsAffected(); err == nil && recovered > 0 {
		q.logger.Warn("recovered orphaned active tasks", zap.Int64("count", recovered))
	}
	return nil
}

func (q *sqliteQueue) Enqueue(ctx context.Context, req Request) (*Handle, error) {
	if err := req.validate(); err != nil {
		return nil, xerrors.Errorf("failed to validate request: %w", err)
	}

	opts := defaulted(req.Options, q.maxAttempts, q.backoffBase)
	key := req.dedupKey()

	subject, err := json.Marshal(req.Subject)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal subject: %w", err)
	}

	now := q.timeSource.Now()
	var delayUntil any
	if opts.Delay > 0 {
		delayUntil = now.Add(opts.Delay).UnixMilli()
	}

	result, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tasks
			(dedup_key, type, subject, source, status, attempt, max_attempts, priority, backoff_base_ms, enqueued_at, delay_until, updated_at)
		 VALUES (?, ?, ?, ?, 'waiting', 0, ?, ?, ?, ?, ?, ?)`,
		key, string(req.Type), string(subject), string(req.Source),
		opts.MaxAttempts, opts.Priority, opts.BackoffBase.Milliseconds(),
		now.UnixMilli(), delayUntil, now.UnixMilli(),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to enqueue task: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, xerrors.Errorf("failed to read enqueue result: %w", err)
	}

	if inserted == 0 {
		q.metrics.deduplicated.Inc(1)
		return &Handle{DedupKey: key, Deduplicated: true}, nil
	}

	q.metrics.enqueued.Inc(1)
	q.logger.Debug(
		"enqueued task",
		zap.String("dedup_key", key),
		zap.String("source", string(req.Source)),
	)
	return &Handle{DedupKey: key}, nil
}

func (q *sqliteQueue) EnqueueBatch(ctx context.Context, reqs []Request) ([]*Handle, error) {
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

func (q *sqliteQueue) Claim(ctx context.Context) (*task.Task, error) {
	for {
		claimed, err := q.tryClaim(ctx)
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

func (q *sqliteQueue) tryClaim(ctx context.Context) (*task.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to begin claim transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := q.timeSource.Now()
	row := tx.QueryRowContext(ctx,
		`SELECT id, dedup_key, type, subject, source, attempt, max_attempts, priority, enqueued_at, delay_until
		 FROM tasks
		 WHERE status = 'waiting' AND (delay_until IS NULL OR delay_until <= ?)
		 ORDER BY priority DESC, id ASC
		 LIMIT 1`,
		now.UnixMilli(),
	)

	var (
		id          int64
		key         string
		taskType    string
		subjectJSON string
		source      string
		attempt     int
		maxAttempts int
		priority    int
		enqueuedAt  int64
		delayUntil  sql.NullInt64
	)
	if err := row.Scan(&id, &key, &taskType, &subjectJSON, &source, &attempt, &maxAttempts, &priority, &enqueuedAt, &delayUntil); err != nil {
		if xerrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, xerrors.Errorf("failed to select claimable task: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'active', attempt = attempt + 1, updated_at = ? WHERE id = ?`,
		now.UnixMilli(), id,
	); err != nil {
		return nil, xerrors.Errorf("failed to claim task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.Errorf("failed to commit claim: %w", err)
	}

	var subject task.Subject
	if err := json.Unmarshal([]byte(subjectJSON), &subject); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal subject: %w", err)
	}

	claimed := &task.Task{
		Type:        task.Type(taskType),
		Subject:     subject,
		Source:      task.Source(source),
		DedupKey:    key,
		Status:      task.StatusActive,
		Attempt:     attempt + 1,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		EnqueuedAt:  time.UnixMilli(enqueuedAt),
	}
	if delayUntil.Valid {
		t := time.UnixMilli(delayUntil.Int64)
		claimed.DelayUntil = &t
	}
	return claimed, nil
}

func (q *sqliteQueue) ReportSuccess(ctx context.Context, t *task.Task) error {
	now := q.timeSource.Now().UnixMilli()
	result, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', updated_at = ? WHERE dedup_key = ? AND status = 'active'`,
		now, t.DedupKey,
	)
	if err != nil {
		return xerrors.Errorf("failed to report success: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return xerrors.Errorf("failed to read success result: %w", err)
	}
	if updated == 0 {
		return ErrAlreadyTerminal
	}

	q.metrics.completed.Inc(1)
	return nil
}

func (q *sqliteQueue) ReportFailure(ctx context.Context, t *task.Task, cause error) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("failed to begin failure transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT id, attempt, max_attempts, backoff_base_ms FROM tasks WHERE dedup_key = ? AND status = 'active'`,
		t.DedupKey,
	)

	var (
		id            int64
		attempt       int
		maxAttempts   int
		backoffBaseMS int64
	)
	if err := row.Scan(&id, &attempt, &maxAttempts, &backoffBaseMS); err != nil {
		if xerrors.Is(err, sql.ErrNoRows) {
			return ErrAlreadyTerminal
		}
		return xerrors.Errorf("failed to select active task: %w", err)
	}

	now := q.timeSource.Now()
	if attempt >= maxAttempts {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = 'failed', updated_at = ? WHERE id = ?`,
			now.UnixMilli(), id,
		); err != nil {
			return xerrors.Errorf("failed to mark task failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return xerrors.Errorf("failed to commit failure: %w", err)
		}

		q.metrics.exhausted.Inc(1)
		q.logger.Warn(
			"task failed terminally",
			zap.String("dedup_key", t.DedupKey),
			zap.Int("attempts", attempt),
			zap.Error(cause),
		)
		return nil
	}

	delayUntil := now.Add(nextBackoff(time.Duration(backoffBaseMS)*time.Millisecond, attempt))
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'waiting', delay_until = ?, updated_at = ? WHERE id = ?`,
		delayUntil.UnixMilli(), now.UnixMilli(), id,
	); err != nil {
		return xerrors.Errorf("failed to schedule retry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Errorf("failed to commit retry: %w", err)
	}

	q.metrics.retried.Inc(1)
	q.logger.Info(
		"task scheduled for retry",
		zap.String("dedup_key", t.DedupKey),
		zap.Int("attempt", attempt),
		zap.Time("delay_until", delayUntil),
		zap.Error(cause),
	)
	return nil
}

func (q *sqliteQueue) Counts(ctx context.Context) (Counts, error) {
	now := q.timeSource.Now().UnixMilli()
	rows, err := q.db.QueryContext(ctx,
		`SELECT
			CASE
				WHEN status = 'waiting' AND delay_until IS NOT NULL AND delay_until > ? THEN 'delayed'
				ELSE status
			END AS state,
			COUNT(*)
		 FROM tasks GROUP BY state`,
		now,
	)
	if err != nil {
		return Counts{}, xerrors.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Counts{}, xerrors.Errorf("failed to scan counts: %w", err)
		}
		switch task.Status(state) {
		case task.StatusWaiting:
			counts.Waiting = count
		case task.StatusDelayed:
			counts.Delayed = count
		case task.StatusActive:
			counts.Active = count
		case task.StatusCompleted:
			counts.Completed = count
		case task.StatusFailed:
			counts.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, xerrors.Errorf("failed to iterate counts: %w", err)
	}
	return counts, nil
}

func (q *sqliteQueue) Close() error {
	return q.db.Close()
}
