// Package dispatch implements the destination adapters that move job
// artifacts to and from remote execution services.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Failure kinds an adapter can report. Call sites wrap these with %w so
// callers classify with errors.Is/errors.As instead of matching message text.
var (
	// ErrInvalidPath means a local artifact the adapter needs is missing
	// or unreadable.
	ErrInvalidPath = errors.New("invalid artifact path")

	// ErrEncodingFailed means the payload could not be encoded or decoded.
	ErrEncodingFailed = errors.New("encoding failed")

	// ErrRequestFailed means the HTTP round-trip itself failed.
	ErrRequestFailed = errors.New("request failed")

	// ErrResponseReadFailed means the response body could not be read or
	// stored.
	ErrResponseReadFailed = errors.New("response read failed")

	// ErrDeserializationFailed means the destination's reply was not the
	// expected JSON.
	ErrDeserializationFailed = errors.New("deserialization failed")
)

var (
	// ErrNotReady means the destination has the job but is still working.
	// Callers retry on a later tick without changing state.
	ErrNotReady = errors.New("destination not ready")

	// ErrJobNotFound means the destination no longer knows the job.
	ErrJobNotFound = errors.New("job not found at destination")

	// ErrJobFailedOrCleaned means the destination reports the job as failed
	// or already cleaned up, with no output to fetch.
	ErrJobFailedOrCleaned = errors.New("job failed or cleaned at destination")
)

// maxErrorBody bounds how much of a destination's error response is carried
// in a StatusError.
const maxErrorBody = 1024

// StatusError reports an HTTP status the adapter did not expect, with a
// truncated copy of the response body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// newStatusError drains up to maxErrorBody bytes of the response into the
// error so logs show what the destination said.
func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
