package queue

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/task"
)

type (
	// Queue is the durable task queue with at-most-one-in-flight identity.
	// A dedup key uniquely identifies at most one waiting-or-active task
	// instance; the queue enforces this atomically on enqueue.
	Queue interface {
		// Enqueue adds a task. If a non-terminal task with the same dedup
		// identity already exists, the call is a no-op and returns the
		// existing handle with Deduplicated set.
		Enqueue(ctx context.Context, req Request) (*Handle, error)

		// EnqueueBatch fans out N independent tasks. Each request has its own
		// dedup key; one request's failure never blocks its siblings. The
		// returned handles are positional; a nil handle marks a failed
		// enqueue, reported through the error (a BatchError).
		EnqueueBatch(ctx context.Context, reqs []Request) ([]*Handle, error)

		// Claim blocks until a task is ready and transfers exclusive
		// ownership of it to the caller, starting a new attempt.
		Claim(ctx context.Context) (*task.Task, error)

		// ReportSuccess marks the claimed task Completed. Reporting a task
		// that is no longer active returns ErrAlreadyTerminal.
		ReportSuccess(ctx context.Context, t *task.Task) error

		// ReportFailure records a failed attempt. The task is re-queued with
		// exponential backoff until MaxAttempts is exhausted, then marked
		// Failed.
		ReportFailure(ctx context.Context, t *task.Task, cause error) error

		// Counts returns the number of tasks per lifecycle state.
		Counts(ctx context.Context) (Counts, error)

		Close() error
	}

	Request struct {
		Type    task.Type
		Subject task.Subject
		Source  task.Source
		Options Options
	}

	Options struct {
		// Delay postpones the first attempt.
		Delay time.Duration
		// Priority orders ready tasks; higher first.
		Priority int
		// MaxAttempts bounds retries. Zero means the configured default.
		MaxAttempts int
		// BackoffBase is the first retry delay, doubling per attempt.
		// Zero means the configured default.
		BackoffBase time.Duration
		// TimeBucket widens the dedup identity with a time component so that
		// recurring polls dedup within one period but not across periods.
		TimeBucket time.Time
	}

	Handle struct {
		DedupKey     string
		Deduplicated bool
	}

	Counts struct {
		Waiting   int `json:"waiting"`
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
		Delayed   int `json:"delayed"`
	}

	// Factory creates a queue backend. Backends register under a named fx
	// provider and the config selects which one serves the process.
	Factory interface {
		Create() (Queue, error)
	}

	// BatchError reports the subset of a batch that failed to enqueue.
	BatchError struct {
		Errs map[int]error
	}
)

var (
	// ErrAlreadyTerminal is returned when reporting an outcome for a task
	// that already reached a terminal state, e.g. a duplicate success report.
	ErrAlreadyTerminal = xerrors.New("task already terminal")

	// ErrClosed is returned once the queue has been shut down.
	ErrClosed = xerrors.New("queue closed")
)

func (e *BatchError) Error() string {
	return xerrors.Errorf("failed to enqueue %v of batch", len(e.Errs)).Error()
}

func (r Request) validate() error {
	if !r.Type.Valid() {
		return xerrors.Errorf("invalid task type: %v", r.Type)
	}
	if !r.Source.Valid() {
		return xerrors.Errorf("invalid task source: %v", r.Source)
	}
	return nil
}

// dedupKey derives the task identity from the dedup-determining inputs.
func (r Request) dedupKey() string {
	return task.Key(r.Type, r.Subject, r.Options.TimeBucket)
}

// nextBackoff returns the retry delay after the given attempt (1-based),
// doubling per attempt: base, 2*base, 4*base, ...
func nextBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func defaulted(opts Options, maxAttempts int, backoffBase time.Duration) Options {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = maxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = backoffBase
	}
	return opts
}
