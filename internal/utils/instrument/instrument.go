package instrument

import (
	"context"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type (
	// Call wraps an operation with metrics (success/error counters plus latency)
	// and an optional structured log line.
	Call interface {
		Instrument(ctx context.Context, operation OperationFn, opts ...InstrumentOption) error
	}

	OperationFn func(ctx context.Context) error
	FilterFn    func(err error) bool

	Option           func(c *options)
	InstrumentOption func(options *instrumentOptions)

	call struct {
		name    string
		err     tally.Counter
		success tally.Counter
		latency tally.Timer
		*options
	}

	options struct {
		filter     FilterFn
		timeSource timesource.TimeSource
		logger     *zap.Logger
		loggerMsg  string
	}

	instrumentOptions struct {
		loggerFields []zap.Field
	}
)

const (
	resultTypeTag     = "result_type"
	resultTypeError   = "error"
	resultTypeSuccess = "success"
	latencySuffix     = "latency"
	durationTag       = "duration"
)

var (
	errTags = map[string]string{
		resultTypeTag: resultTypeError,
	}

	successTags = map[string]string{
		resultTypeTag: resultTypeSuccess,
	}
)

func NewCall(scope tally.Scope, name string, opts ...Option) Call {
	options := &options{
		timeSource: timesource.NewRealTimeSource(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &call{
		name:    name,
		err:     scope.Tagged(errTags).Counter(name),
		success: scope.Tagged(successTags).Counter(name),
		latency: scope.SubScope(name).Timer(latencySuffix),
		options: options,
	}
}

// WithFilter treats the errors matched by the filter as successes.
// Commonly used for not-found style sentinel errors.
func WithFilter(filter FilterFn) Option {
	return func(o *options) {
		o.filter = filter
	}
}

// WithLogger logs the result of each call with the given message.
func WithLogger(logger *zap.Logger, msg string) Option {
	return func(o *options) {
		o.logger = logger
		o.loggerMsg = msg
	}
}

// WithTimeSource overrides the time source used for latency measurement.
func WithTimeSource(timeSource timesource.TimeSource) Option {
	return func(o *options) {
		o.timeSource = timeSource
	}
}

// WithLoggerFields attaches extra fields to the log line of this call.
func WithLoggerFields(fields ...zap.Field) InstrumentOption {
	return func(o *instrumentOptions) {
		o.loggerFields = append(o.loggerFields, fields...)
	}
}

func (c *call) Instrument(ctx context.Context, operation OperationFn, opts ...InstrumentOption) error {
	instrumentOptions := &instrumentOptions{}
	for _, opt := range opts {
		opt(instrumentOptions)
	}

	startTime := c.timeSource.Now()
	err := operation(ctx)
	duration := c.timeSource.Now().Sub(startTime)
	c.latency.Record(duration)

	filtered := false
	if err != nil && c.filter != nil && c.filter(err) {
		filtered = true
	}

	if err != nil && !filtered {
		c.err.Inc(1)
		if c.logger != nil {
			fields := append(
				[]zap.Field{zap.String(durationTag, duration.String()), zap.Error(err)},
				instrumentOptions.loggerFields...,
			)
			c.logger.Warn(c.loggerMsg, fields...)
		}
		return err
	}

	c.success.Inc(1)
	if c.logger != nil {
		fields := append(
			[]zap.Field{zap.String(durationTag, duration.String())},
			instrumentOptions.loggerFields...,
		)
		c.logger.Debug(c.loggerMsg, fields...)
	}
	return err
}
