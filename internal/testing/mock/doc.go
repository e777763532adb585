// Package mock provides an in-process OAuth 2.0 token endpoint for testing
// tokensession components.
//
// TokenServer runs on httptest and implements the subset of the protocol the
// session coordinator speaks:
//
//   - POST grant_type=password validates users from TokenServerConfig.Users
//   - POST grant_type=refresh_token exchanges issued refresh tokens, checking
//     client credentials when configured
//   - DELETE with a bearer credential revokes the access token
//
// Access tokens are HS256-signed JWTs carrying sub and preferred_username.
// A protected API under APIPath answers 200 for live access tokens and 401
// otherwise, which lets tests exercise bearer injection and 401 handling
// end to end.
//
// Failure injection (FailGrant), canned responses (QueueResponse) and per-grant
// request counters (Count, LastForm) make timing and retry behavior observable.
package mock
