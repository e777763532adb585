package authn

import "errors"

var (
	// ErrRefreshThrottled is returned when an on-demand refresh was suppressed
	// because another one happened too recently.
	ErrRefreshThrottled = errors.New("on-demand token refresh throttled")

	// ErrRevokeFailed is returned by Logout when the server-side revocation
	// failed. The local session is cleared regardless.
	ErrRevokeFailed = errors.New("token revocation failed")

	// ErrNoRefreshToken is returned by Refresh when the session holds no
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrNoEndpoint is returned when a coordinator is created without an
	// absolute http(s) endpoint URL.
	ErrNoEndpoint = errors.New("oauth endpoint is required")
)
