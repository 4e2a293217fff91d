package retry

import (
	"fmt"
)

type (
	RetryableError struct {
		Err error
	}

	RateLimitError struct {
		Err error
	}
)

// Retryable returns an error that indicates that the operation should be retried.
func Retryable(err error) error {
	return &RetryableError{
		Err: err,
	}
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("RetryableError: %v", e.Err.Error())
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// RateLimit returns an error that indicates that the operation should be retried after a delay.
func RateLimit(err error) error {
	return &RateLimitError{
		Err: err,
	}
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("RateLimitError: %v", e.Err.Error())
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
