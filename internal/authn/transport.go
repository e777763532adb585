package authn

import (
	"context"
	"net/http"
)

// Transport is an http.RoundTripper that attaches the session's bearer token
// to requests for the protected API and invalidates the session on 401.
type Transport struct {
	coordinator *Coordinator
	base        http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	_ = t.coordinator.AddBearerToken(req.Context(), HTTPRequest(out))

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	// A 401 must invalidate the session even when the caller has already
	// given up on the request.
	t.coordinator.ValidateResponse(context.WithoutCancel(req.Context()), HTTPResponse(resp))
	return resp, nil
}

// Transport returns a RoundTripper bound to this session.
func (c *Coordinator) Transport() *Transport {
	return &Transport{coordinator: c, base: c.baseTransport}
}

// HTTPClient returns a client whose requests carry the session's bearer
// token. Token endpoint traffic of the coordinator itself never goes through
// it.
func (c *Coordinator) HTTPClient() *http.Client {
	return &http.Client{Transport: c.Transport()}
}
