package authn

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"tokensession/internal/session"
)

// Request is the part of an outgoing request the coordinator needs.
type Request interface {
	URL() *url.URL
	SetHeader(key, value string)
	DelHeader(key string)
}

// Response is the part of a received response the coordinator needs.
type Response interface {
	URL() *url.URL
	StatusCode() int
}

type httpRequest struct{ req *http.Request }

func (r httpRequest) URL() *url.URL               { return r.req.URL }
func (r httpRequest) SetHeader(key, value string) { r.req.Header.Set(key, value) }
func (r httpRequest) DelHeader(key string)        { r.req.Header.Del(key) }

// HTTPRequest adapts an *http.Request.
func HTTPRequest(req *http.Request) Request {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	return httpRequest{req: req}
}

type httpResponse struct{ resp *http.Response }

func (r httpResponse) URL() *url.URL {
	if r.resp.Request == nil {
		return nil
	}
	return r.resp.Request.URL
}

func (r httpResponse) StatusCode() int { return r.resp.StatusCode }

// HTTPResponse adapts an *http.Response. The URL is taken from the request
// that produced it.
func HTTPResponse(resp *http.Response) Response {
	return httpResponse{resp: resp}
}

// HostMatches reports whether two URLs address the same host. A URL without
// a host (relative) matches anything. Ports are ignored.
func HostMatches(a, b *url.URL) bool {
	if a == nil || b == nil || a.Host == "" || b.Host == "" {
		return true
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// AddBearerToken prepares req for the protected API. Requests to other hosts
// are left untouched. For matching hosts the token is validated first,
// refreshing it when needed, and then the Authorization header is set from
// the current access token or removed when there is none.
//
// Validation failures do not block the request; the error is returned for
// information only.
func (c *Coordinator) AddBearerToken(ctx context.Context, req Request) error {
	if !HostMatches(req.URL(), c.endpointURL) {
		return nil
	}

	err := c.jobs.Do(ctx, "validateOnDemand", func(ctx context.Context) error {
		return c.validateLocked(ctx, true)
	})
	if err != nil {
		c.logger.Debug("On-demand token validation failed, sending request anyway",
			"host", req.URL().Host,
			"error", err,
		)
	}

	if rec := c.snapshot(); rec.HasAccessToken() {
		req.SetHeader("Authorization", "Bearer "+rec.AccessToken)
	} else {
		req.DelHeader("Authorization")
	}
	return err
}

// ValidateResponse inspects a response from the protected API. A 401 from a
// matching host invalidates the session and removes the persisted record.
// The response is returned unchanged.
func (c *Coordinator) ValidateResponse(ctx context.Context, resp Response) Response {
	if resp.StatusCode() != http.StatusUnauthorized || !HostMatches(resp.URL(), c.endpointURL) {
		return resp
	}

	err := c.jobs.Do(ctx, "invalidate", func(ctx context.Context) error {
		c.scheduler.Cancel()
		c.machine.Fire(session.TokenInvalidated)
		c.removePersisted(ctx)
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to invalidate session after 401", "error", err)
		return resp
	}

	c.logger.Info("SECURITY_AUDIT: Session invalidated by 401 response",
		"event", "token_invalidated",
		"endpoint", c.endpoint,
	)
	return resp
}
