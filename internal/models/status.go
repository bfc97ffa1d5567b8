package models

import (
	"encoding/json"
	"strings"
)

// Status represents the lifecycle state of a job or payload.
// Anything unrecognized folds to StatusUnknown.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCleaned    Status = "cleaned"
	// StatusPrepared is client-side only: inputs have landed on disk and the
	// payload is ready for the runner.
	StatusPrepared Status = "prepared"
)

// StatusFromString parses a stored status value. Unknown names fold to
// StatusUnknown rather than erroring, so old rows never break a scan.
func StatusFromString(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued":
		return StatusQueued
	case "processing":
		return StatusProcessing
	case "submitted":
		return StatusSubmitted
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "cleaned":
		return StatusCleaned
	case "prepared":
		return StatusPrepared
	default:
		return StatusUnknown
	}
}

// String returns the lower-case form stored in the database.
func (s Status) String() string {
	return string(s)
}

// Display returns the capitalized form used in API responses ("Queued").
func (s Status) Display() string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Terminal reports whether the scheduler will never advance this status.
// The janitor may still move any status to cleaned.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusUnknown, StatusCleaned:
		return true
	}
	return false
}

// MarshalJSON encodes the display form so API consumers see "Queued",
// while the database keeps the lower-case form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Display())
}

// UnmarshalJSON accepts either casing.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = StatusFromString(raw)
	return nil
}
