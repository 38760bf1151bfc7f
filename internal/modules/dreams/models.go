// Package dreams stores the user-submitted dreams that the engine evaluates.
package dreams

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a dream does not exist
	ErrNotFound = errors.New("dream not found")
	// ErrInvalid is returned when a dream or status change fails validation
	ErrInvalid = errors.New("invalid dream")
)

// Status of a dream. Only active dreams are retested.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}

// Dream is a user-submitted aspirational statement
type Dream struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	OriginalPrompt string    `json:"original_prompt"`
	Category       string    `json:"category"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
