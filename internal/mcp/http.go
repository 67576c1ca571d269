package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nugget/servicebridge/internal/config"
	"github.com/nugget/servicebridge/internal/httpkit"
	"github.com/nugget/servicebridge/internal/tools"
)

// sessionHeader carries the streamable-HTTP session id.
const sessionHeader = "Mcp-Session-Id"

// HTTPConfig configures an HTTP MCP transport that communicates with a
// remote MCP server over streamable HTTP (JSON-RPC over POST).
type HTTPConfig struct {
	// URL is the MCP server endpoint, including any query-mode key.
	URL string

	// Headers are sent with every request (e.g. the API key header).
	Headers http.Header

	// Timeout bounds each attempt; Retries is the number of extra
	// attempts after a network failure or 5xx.
	Timeout time.Duration
	Retries int

	// BackoffUnit overrides the linear retry step. Zero means one second.
	BackoffUnit time.Duration

	// Client overrides the HTTP client. Nil builds one via httpkit.
	Client *http.Client

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// HTTPTransport communicates with an MCP server over streamable HTTP.
// Each JSON-RPC request is sent as an HTTP POST through the retrying
// httpkit.Send; the response comes back in the response body.
type HTTPTransport struct {
	url        string
	headers    http.Header
	policy     httpkit.RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

// NewHTTPTransport creates an HTTP transport for the given config.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = httpkit.NewClient()
	}

	return &HTTPTransport{
		url:     cfg.URL,
		headers: cfg.Headers.Clone(),
		policy: httpkit.RetryPolicy{
			Timeout:     cfg.Timeout,
			Retries:     cfg.Retries,
			BackoffUnit: cfg.BackoffUnit,
			Logger:      logger,
		},
		httpClient: client,
		logger:     logger,
	}
}

// Send POSTs a JSON-RPC request and returns the raw result member.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json, text/event-stream")
	for k, vals := range t.headers {
		header[k] = append([]string(nil), vals...)
	}

	// Include session ID if we have one from a previous response.
	t.mu.RLock()
	if t.sessionID != "" {
		header.Set(sessionHeader, t.sessionID)
	}
	t.mu.RUnlock()

	t.logger.Log(ctx, config.LevelTrace, "MCP request", "method", req.Method, "id", req.ID,
		"call_id", tools.CallIDFromContext(ctx), "body", string(body))

	resp, err := httpkit.Send(ctx, t.httpClient, httpkit.Request{
		Method: http.MethodPost,
		URL:    t.url,
		Header: header,
		Body:   body,
	}, t.policy)
	if err != nil {
		return nil, err
	}

	if sid := resp.Header.Get(sessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	t.logger.Log(ctx, config.LevelTrace, "MCP response", "status", resp.StatusCode, "body", string(resp.Body))

	if !resp.OK() {
		return nil, fmt.Errorf("MCP HTTP %d: %s", resp.StatusCode,
			httpkit.TrimForError(string(resp.Body), httpkit.MaxErrorText))
	}

	if strings.Contains(strings.ToLower(resp.ContentType()), "text/event-stream") {
		return decodeEnvelope(sseMessage(resp.Body, req.ID))
	}
	return decodeEnvelope(resp.Body)
}

// ResolveEndpointURL joins a base URL and an endpoint path. Trailing
// slashes are trimmed from the base. An empty path yields the base. A
// base that already ends with the path is kept as is; otherwise the
// path (given a leading slash) is resolved against the base, so an
// absolute path replaces any base path.
func ResolveEndpointURL(base, path string) (string, error) {
	trimmed := strings.TrimRight(base, "/")

	baseURL, err := url.Parse(trimmed + "/")
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", base)
	}

	if path == "" {
		return trimmed, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasSuffix(trimmed, path) {
		return trimmed, nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse endpoint path %q: %w", path, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// NewHTTPClient builds a client for one configured MoviePilot service:
// it resolves the endpoint URL and applies the API key per its mode.
func NewHTTPClient(svc *config.ServiceConfig, logger *slog.Logger) (*Client, error) {
	endpoint, err := ResolveEndpointURL(svc.BaseURL, svc.EndpointPath)
	if err != nil {
		return nil, err
	}

	if svc.APIKey != "" && svc.KeyMode() == config.KeyModeQuery {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint URL: %w", err)
		}
		q := u.Query()
		q.Set(svc.KeyQueryParam(), svc.APIKey)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	transport := NewHTTPTransport(HTTPConfig{
		URL:     endpoint,
		Headers: svc.AuthHeaders(),
		Timeout: svc.Timeout(),
		Retries: svc.RetryCount(),
		Client:  httpkit.ServiceClient(svc),
		Logger:  logger,
	})
	return NewClient(transport, logger), nil
}
