package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// ErrNotFound is returned by Delete when no remote row matched the id.
var ErrNotFound = fmt.Errorf("remote row %w", common.ErrNotFound)

// StatusError is a non-2xx response from the remote store.
type StatusError struct {
	Table  model.Table
	Body   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: remote returned %d %s: %s", e.Table, e.Status, http.StatusText(e.Status), e.Body)
}

// RejectedError is a permanent refusal of a request, such as a constraint
// violation. Repeating the request unchanged will fail the same way.
type RejectedError struct {
	*StatusError
}

func (e *RejectedError) Unwrap() error { return e.StatusError }

// IsRejected reports whether err is a permanent remote rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// classify turns a failed response into a transient or permanent error.
func classify(table model.Table, status int, body string) error {
	statusErr := &StatusError{Table: table, Status: status, Body: body}
	switch {
	case status >= http.StatusInternalServerError,
		status == http.StatusRequestTimeout:
		return &common.RetryableError{Err: statusErr, Retryable: true}
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, statusErr), Retryable: true}
	default:
		return &RejectedError{StatusError: statusErr}
	}
}
