package oauth

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrAuthRejected indicates that the token endpoint rejected the presented
// credentials or refresh token (HTTP 400 or 401). Retrying with the same
// credential will not succeed.
var ErrAuthRejected = errors.New("credentials rejected by token endpoint")

// GrantError describes a failed request against the token endpoint.
// StatusCode is zero when no HTTP response was received.
type GrantError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *GrantError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GrantError) Unwrap() error {
	return e.Err
}

// Is reports ErrAuthRejected for 400 and 401 responses.
func (e *GrantError) Is(target error) bool {
	return target == ErrAuthRejected && isRejectionStatus(e.StatusCode)
}

func isRejectionStatus(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusUnauthorized
}

// IsAuthRejected reports whether err is a terminal credential rejection.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}

// IsTransient reports whether err is a failure worth retrying later:
// network errors, timeouts, 5xx and any other non-rejection status.
func IsTransient(err error) bool {
	return err != nil && !IsAuthRejected(err)
}

// StatusCode extracts the HTTP status of a failed token endpoint request, or 0.
func StatusCode(err error) int {
	var grantErr *GrantError
	if errors.As(err, &grantErr) {
		return grantErr.StatusCode
	}
	return 0
}

// classify wraps an error returned by golang.org/x/oauth2 into a GrantError,
// lifting the HTTP status out of *oauth2.RetrieveError when present.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	grantErr := &GrantError{Op: op, Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		grantErr.StatusCode = retrieveErr.Response.StatusCode
	}
	return grantErr
}
