// Package moviepilot provides a client for the MoviePilot REST API and
// publishes a fixed set of MoviePilot operations as host tools.
package moviepilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nugget/servicebridge/internal/config"
	"github.com/nugget/servicebridge/internal/httpkit"
	"github.com/nugget/servicebridge/internal/tools"
)

// ErrMissingParam is returned when a path placeholder has no value.
var ErrMissingParam = errors.New("missing path parameter")

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// CallOptions carries the variable parts of one REST call.
type CallOptions struct {
	// PathParams fills {name} placeholders in the path template.
	PathParams map[string]string

	// Query values: slices repeat the parameter, scalars overwrite it,
	// nil values are skipped.
	Query map[string]any

	// Body is sent as JSON on non-GET requests when non-nil.
	Body any
}

// Client is a MoviePilot REST API client.
type Client struct {
	baseURL    string
	svc        *config.ServiceConfig
	httpClient *http.Client
	policy     httpkit.RetryPolicy
	logger     *slog.Logger
}

// NewClient creates a client for one configured MoviePilot service. The
// base URL must be absolute.
func NewClient(svc *config.ServiceConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(svc.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", svc.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", svc.BaseURL)
	}

	return &Client{
		baseURL:    base,
		svc:        svc,
		httpClient: httpkit.ServiceClient(svc),
		policy:     httpkit.ServicePolicy(svc, logger),
		logger:     logger,
	}, nil
}

// Call performs one REST call and returns the decoded response: JSON
// values for JSON responses, a string for anything else, nil for an
// empty body. Unresolved placeholders fail before any request is made.
func (c *Client) Call(ctx context.Context, method, pathTemplate string, opts CallOptions) (any, error) {
	target, err := c.buildURL(pathTemplate, opts)
	if err != nil {
		return nil, err
	}

	method = strings.ToUpper(method)
	header := http.Header{}
	header.Set("Accept", "application/json")
	for k, vals := range c.svc.AuthHeaders() {
		header[k] = vals
	}

	var body []byte
	if method != http.MethodGet && opts.Body != nil {
		body, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		header.Set("Content-Type", "application/json")
	}

	c.logger.Log(ctx, config.LevelTrace, "MoviePilot request", "method", method, "path", pathTemplate, "call_id", tools.CallIDFromContext(ctx))

	resp, err := httpkit.Send(ctx, c.httpClient, httpkit.Request{
		Method: method,
		URL:    target,
		Header: header,
		Body:   body,
	}, c.policy)
	if err != nil {
		return nil, err
	}

	c.logger.Log(ctx, config.LevelTrace, "MoviePilot response", "status", resp.StatusCode, "bytes", len(resp.Body), "call_id", tools.CallIDFromContext(ctx))

	if !resp.OK() {
		return nil, fmt.Errorf("MoviePilot HTTP %d: %s", resp.StatusCode,
			httpkit.TrimForError(string(resp.Body), httpkit.MaxErrorText))
	}

	return decodeBody(resp.ContentType(), resp.Body), nil
}

// buildURL resolves the path template and appends query parameters,
// then the query-mode API key last.
func (c *Client) buildURL(pathTemplate string, opts CallOptions) (string, error) {
	path, err := expandPath(pathTemplate, opts.PathParams)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("build URL: %w", err)
	}

	q := u.Query()
	for key, val := range opts.Query {
		addQuery(q, key, val)
	}
	if c.svc.APIKey != "" && c.svc.KeyMode() == config.KeyModeQuery {
		q.Set(c.svc.KeyQueryParam(), c.svc.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// expandPath substitutes every {name} with the percent-encoded value.
func expandPath(tmpl string, params map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		val := params[name]
		if val == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(val)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}
	return out, nil
}

func addQuery(q url.Values, key string, val any) {
	switch v := val.(type) {
	case nil:
		return
	case []string:
		for _, s := range v {
			q.Add(key, s)
		}
	case []any:
		for _, item := range v {
			if item != nil {
				q.Add(key, formatScalar(item))
			}
		}
	default:
		q.Set(key, formatScalar(v))
	}
}

// formatScalar renders a query or path value. Floats never use
// exponent notation.
func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// decodeBody interprets a successful response by content type. An absent
// content type tries JSON first and falls back to text.
func decodeBody(contentType string, body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "application/json") {
		return string(body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(body)
	}
	return v
}
