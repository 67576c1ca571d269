// Package httpkit provides shared HTTP client construction and the
// retrying send used by every outbound call to a remote service. Both the
// JSON-RPC and the REST integrations go through [Send], so timeouts,
// retry budgets, and backoff behave the same regardless of wire style.
package httpkit

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/nugget/servicebridge/internal/buildinfo"
	"github.com/nugget/servicebridge/internal/config"
)

// Connection settings for the per-client transport. Request deadlines
// are set per attempt by [Send], not here.
const (
	dialTimeout         = 10 * time.Second
	keepAlive           = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 4
)

// ClientOption configures a client built by NewClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	tokenSource oauth2.TokenSource
}

// WithTokenSource authorizes every request with an
// "Authorization: Bearer <token>" header taken from ts.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *clientConfig) { c.tokenSource = ts }
}

// NewClient builds an *http.Client that stamps a User-Agent on every
// request and, with [WithTokenSource], a bearer token. It has no overall
// timeout.
func NewClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}

	var rt http.RoundTripper = &userAgentTransport{base: base, ua: buildinfo.UserAgent()}
	if cfg.tokenSource != nil {
		rt = &oauth2.Transport{Source: cfg.tokenSource, Base: rt}
	}
	return &http.Client{Transport: rt}
}

// ServiceClient builds the client for one configured remote service.
// Bearer mode puts the API key in the Authorization header; the other
// modes are applied by the caller, which owns the URL and headers.
func ServiceClient(svc *config.ServiceConfig, opts ...ClientOption) *http.Client {
	if svc.APIKey != "" && svc.KeyMode() == config.KeyModeBearer {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: svc.APIKey, TokenType: "Bearer"})
		opts = append([]ClientOption{WithTokenSource(ts)}, opts...)
	}
	return NewClient(opts...)
}

// ServicePolicy returns the retry policy configured for svc.
func ServicePolicy(svc *config.ServiceConfig, logger *slog.Logger) RetryPolicy {
	return RetryPolicy{
		Timeout: svc.Timeout(),
		Retries: svc.RetryCount(),
		Logger:  logger,
	}
}

// userAgentTransport sets the User-Agent header unless the request
// already carries one.
type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}
