package llm

import (
	"context"
	"errors"
	"fmt"
)

// CallError is returned by adapters when a provider round-trip fails:
// transport errors, timeouts and non-success statuses.
type CallError struct {
	Provider   string
	Model      string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s call for %s failed with status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call for %s failed: %v", e.Provider, e.Model, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was cut off by its deadline
func (e *CallError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewCallError wraps err as a CallError
func NewCallError(provider, model string, statusCode int, err error) *CallError {
	return &CallError{Provider: provider, Model: model, StatusCode: statusCode, Err: err}
}
