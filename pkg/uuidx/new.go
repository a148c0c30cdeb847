// Package uuidx issues time-ordered identifiers for sessions and transcripts.
package uuidx

import "github.com/google/uuid"

// New returns a v7 UUID. v7 sorts by creation time, so session and transcript
// keys list chronologically without a separate timestamp column.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New rendered as the canonical string form.
func NewString() string {
	return New().String()
}
