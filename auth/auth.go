// Package auth authenticates outbound calls to forecast APIs.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred caches a client-credentials token. It is safe for concurrent use.
type ClientCred struct {
	conf  clientcredentials.Config
	mu    sync.Mutex
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.clientCredentials()}
}

// Token returns the cached token, fetching one when it is missing or
// expired. A stale token equal to the cached one is discarded first, so
// concurrent callers that saw the same rejection refresh only once.
func (c *ClientCred) Token(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && stale != "" && c.token.AccessToken == stale {
		c.token = nil
	}
	if c.token == nil || !c.token.Valid() {
		tok, err := c.conf.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("fetch forecast api token: %w", err)
		}
		c.token = tok
	}
	return c.token.AccessToken, nil
}

// Transport decorates requests with credentials. With client credentials a
// 401 answer triggers one token refresh and a single retry.
type Transport struct {
	Base  http.RoundTripper
	creds *ClientCred
	key   string
	hdr   string
}

// NewTransport wraps base (http.DefaultTransport when nil) for conf.
func NewTransport(conf Conf, base http.RoundTripper) (*Transport, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{Base: base, key: conf.APIKey, hdr: conf.APIKeyHeader}
	if t.hdr == "" {
		t.hdr = DefaultAPIKeyHeader
	}
	if conf.AuthURL != "" {
		t.creds = NewClientCred(conf)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.creds == nil {
		r := req.Clone(req.Context())
		if t.key != "" {
			r.Header.Set(t.hdr, t.key)
		}
		return t.Base.RoundTrip(r)
	}
	tok, err := t.creds.Token(req.Context(), "")
	if err != nil {
		return nil, err
	}
	resp, err := t.Base.RoundTrip(withBearer(req, tok))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || req.Body != nil && req.GetBody == nil {
		return resp, err
	}
	_ = resp.Body.Close()
	fresh, err := t.creds.Token(req.Context(), tok)
	if err != nil {
		return nil, err
	}
	retry := withBearer(req, fresh)
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, err
		}
	}
	return t.Base.RoundTrip(retry)
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
