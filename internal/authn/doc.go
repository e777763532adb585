// Package authn coordinates the lifecycle of an OAuth 2.0 bearer-token
// session: login, persistence, proactive refresh, retry, expiry, logout and
// the reaction to 401 responses.
//
// A Coordinator owns one session for one OAuth endpoint. Every operation
// that changes the session is queued on a FIFO job serializer, so at most one
// token operation is in flight at a time:
//
//	c, err := authn.New("https://auth.example.com/oauth/token",
//	    authn.WithStore(store),
//	)
//	_ = c.UseLocalToken(ctx) // resume a persisted session
//	if !c.LoggedIn() {
//	    err = c.Login(ctx, "alice", password)
//	}
//	resp, err := c.HTTPClient().Get("https://auth.example.com/api/orders")
//
// Requests to the endpoint's host get an Authorization header; a 401 from
// that host ends the session. Tokens are refreshed 25 minutes before they
// expire (WithRefreshLead) and treated as expired 5 seconds early
// (WithHardExpiryMargin).
//
// # Timers
//
// Timers run on an injectable k8s.io/utils/clock clock. Timer callbacks only
// queue jobs; a job armed for an older schedule does nothing.
package authn
