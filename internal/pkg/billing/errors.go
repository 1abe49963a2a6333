package billing

import "fmt"

// RetryableError wraps transient storage failures during reconciliation. The
// webhook handler answers 5xx for these so the processor redelivers; the
// deduplicator leaves the event unprocessed, which makes that redelivery safe.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err should surface as a 5xx to trigger
// redelivery by the processor.
func IsRetryable(err error) bool {
	for err != nil {
		if _, ok := err.(*RetryableError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
