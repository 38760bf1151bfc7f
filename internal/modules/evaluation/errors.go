package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResults is returned by Consensus when given nothing to combine
	ErrNoResults = errors.New("no evaluation results to combine")
	// ErrNoHistory means a dream has no completed evaluations
	ErrNoHistory = errors.New("no completed evaluations found for dream")
	// ErrNoModels means a request selected no runnable (provider, model) pair
	ErrNoModels = errors.New("no configured models match the request")
	// ErrInvalidRequest means a request is missing required fields
	ErrInvalidRequest = errors.New("invalid evaluation request")
)

// ParseError means no JSON object could be extracted from a provider reply
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to parse evaluation response: " + e.Reason
}

// ValidationError means the extracted object is missing a field or has a score out of range
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid evaluation response field %s: %s", e.Field, e.Reason)
}
