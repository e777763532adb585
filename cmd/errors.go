package cmd

import "fmt"

// AuthRequiredError indicates the command needs a logged-in session and
// none could be resumed.
type AuthRequiredError struct {
	// Endpoint is the token endpoint the session belongs to.
	Endpoint string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`Authentication required for %s

To authenticate, run:
  tokensession login --endpoint %s

To check current authentication status:
  tokensession status`, e.Endpoint, e.Endpoint)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}
