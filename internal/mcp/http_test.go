package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nugget/servicebridge/internal/config"
)

func TestResolveEndpointURL(t *testing.T) {
	tests := []struct {
		base, path string
		want       string
	}{
		{"http://host:3000/", "/mcp", "http://host:3000/mcp"},
		{"http://host:3000", "mcp", "http://host:3000/mcp"},
		{"http://host:3000///", "", "http://host:3000"},
		{"http://host:3000/mcp", "/mcp", "http://host:3000/mcp"},
		{"http://host:3000/mcp/", "mcp", "http://host:3000/mcp"},
		{"http://host:3000/api", "/mcp", "http://host:3000/mcp"},
		{"https://mp.example.com/base", "/api/v1/mcp", "https://mp.example.com/api/v1/mcp"},
	}
	for _, tt := range tests {
		t.Run(tt.base+"+"+tt.path, func(t *testing.T) {
			got, err := ResolveEndpointURL(tt.base, tt.path)
			if err != nil {
				t.Fatalf("ResolveEndpointURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveEndpointURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveEndpointURL_Invalid(t *testing.T) {
	for _, base := range []string{"not a url", "://missing-scheme", "/relative/only", "http://[::1"} {
		if _, err := ResolveEndpointURL(base, "/mcp"); err == nil {
			t.Errorf("ResolveEndpointURL(%q) should fail", base)
		}
	}
}

// rpcServer answers every POST with the handler's status and body and
// records the requests it saw.
type rpcServer struct {
	mu      sync.Mutex
	reqs    []*http.Request
	bodies  []string
	handler func(n int) (int, string)
}

func (s *rpcServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.reqs = append(s.reqs, r)
	s.bodies = append(s.bodies, string(b))
	n := len(s.reqs)
	s.mu.Unlock()

	status, body := s.handler(n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (s *rpcServer) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func (s *rpcServer) request(i int) (*http.Request, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[i], s.bodies[i]
}

func TestHTTPTransport_Send(t *testing.T) {
	rs := &rpcServer{handler: func(int) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		URL:     srv.URL + "/mcp",
		Headers: http.Header{"X-Api-Key": {"secret"}},
	})
	raw, err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(raw) != `{"tools":[]}` {
		t.Errorf("result = %s", raw)
	}

	req, body := rs.request(0)
	if req.Method != http.MethodPost || req.URL.Path != "/mcp" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if key := req.Header.Get("X-API-KEY"); key != "secret" {
		t.Errorf("X-API-KEY = %q", key)
	}
	if body != `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` {
		t.Errorf("body = %s", body)
	}
}

func TestHTTPTransport_NonOKStatus(t *testing.T) {
	rs := &rpcServer{handler: func(int) (int, string) {
		return http.StatusUnauthorized, "  bad\n\tkey  "
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Retries: 3, BackoffUnit: time.Millisecond})
	_, err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	if err == nil || err.Error() != "MCP HTTP 401: bad key" {
		t.Errorf("error = %v, want MCP HTTP 401: bad key", err)
	}
	if n := rs.attempts(); n != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", n)
	}
}

func TestHTTPTransport_RetriesServerErrors(t *testing.T) {
	rs := &rpcServer{handler: func(n int) (int, string) {
		if n < 3 {
			return http.StatusBadGateway, "upstream"
		}
		return http.StatusOK, `{"result":"ok"}`
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Retries: 2, BackoffUnit: time.Millisecond})
	raw, err := tr.Send(context.Background(), NewRequest(7, "tools/call", map[string]any{"name": "x"}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(raw) != `"ok"` {
		t.Errorf("result = %s", raw)
	}
	if n := rs.attempts(); n != 3 {
		t.Fatalf("attempts = %d, want 3", n)
	}
	_, first := rs.request(0)
	for i := 1; i < 3; i++ {
		if _, b := rs.request(i); b != first {
			t.Errorf("attempt %d body differs: %s", i+1, b)
		}
	}
}

func TestHTTPTransport_FinalServerError(t *testing.T) {
	rs := &rpcServer{handler: func(int) (int, string) {
		return http.StatusServiceUnavailable, "maintenance"
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Retries: 1, BackoffUnit: time.Millisecond})
	_, err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	if err == nil || err.Error() != "MCP HTTP 503: maintenance" {
		t.Errorf("error = %v", err)
	}
	if n := rs.attempts(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestHTTPTransport_SessionID(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Mcp-Session-Id"))
		mu.Unlock()
		w.Header().Set("Mcp-Session-Id", "sess-1")
		io.WriteString(w, `{"result":{}}`)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	for range 2 {
		if _, err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "" || seen[1] != "sess-1" {
		t.Errorf("session headers = %q", seen)
	}
}

func TestNewHTTPClient_Auth(t *testing.T) {
	type seenReq struct {
		query  string
		header http.Header
	}
	var last atomic.Pointer[seenReq]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.Store(&seenReq{query: r.URL.RawQuery, header: r.Header.Clone()})
		io.WriteString(w, `{"result":{"tools":[]}}`)
	}))
	defer srv.Close()

	zero := 0
	tests := []struct {
		name      string
		svc       config.ServiceConfig
		wantQuery string
		check     func(t *testing.T, h http.Header)
	}{
		{
			name: "header default",
			svc:  config.ServiceConfig{APIKey: "k1"},
			check: func(t *testing.T, h http.Header) {
				if h.Get("X-API-KEY") != "k1" {
					t.Errorf("X-API-KEY = %q", h.Get("X-API-KEY"))
				}
			},
		},
		{
			name: "custom header",
			svc:  config.ServiceConfig{APIKey: "k2", APIKeyHeader: "X-MP-Token"},
			check: func(t *testing.T, h http.Header) {
				if h.Get("X-MP-Token") != "k2" || h.Get("X-API-KEY") != "" {
					t.Errorf("headers = %v", h)
				}
			},
		},
		{
			name:      "query",
			svc:       config.ServiceConfig{APIKey: "k3", APIKeyMode: "query"},
			wantQuery: "apikey=k3",
			check: func(t *testing.T, h http.Header) {
				if h.Get("X-API-KEY") != "" {
					t.Error("query mode must not send the key header")
				}
			},
		},
		{
			name:      "custom query param",
			svc:       config.ServiceConfig{APIKey: "k4", APIKeyMode: "query", APIKeyQueryParam: "token"},
			wantQuery: "token=k4",
		},
		{
			name: "bearer",
			svc:  config.ServiceConfig{APIKey: "k5", APIKeyMode: "bearer"},
			check: func(t *testing.T, h http.Header) {
				if h.Get("Authorization") != "Bearer k5" {
					t.Errorf("Authorization = %q", h.Get("Authorization"))
				}
			},
		},
		{
			name: "none",
			svc:  config.ServiceConfig{APIKey: "k6", APIKeyMode: "none"},
			check: func(t *testing.T, h http.Header) {
				if h.Get("X-API-KEY") != "" || h.Get("Authorization") != "" {
					t.Errorf("none mode sent credentials: %v", h)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tt.svc
			svc.BaseURL = srv.URL + "/"
			svc.EndpointPath = "/mcp"
			svc.Retries = &zero

			client, err := NewHTTPClient(&svc, nil)
			if err != nil {
				t.Fatalf("NewHTTPClient: %v", err)
			}
			if _, err := client.ListTools(context.Background()); err != nil {
				t.Fatalf("ListTools: %v", err)
			}

			got := last.Load()
			if got.query != tt.wantQuery {
				t.Errorf("query = %q, want %q", got.query, tt.wantQuery)
			}
			if tt.check != nil {
				tt.check(t, got.header)
			}
		})
	}
}

func TestNewHTTPClient_InvalidBase(t *testing.T) {
	if _, err := NewHTTPClient(&config.ServiceConfig{BaseURL: "moviepilot:3000"}, nil); err == nil {
		t.Error("expected error for base URL without host")
	}
}

func TestHTTPTransport_RequestShape(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"result":null}`)
	}))
	defer srv.Close()

	client := NewClient(NewHTTPTransport(HTTPConfig{URL: srv.URL}), nil)
	raw, err := client.CallTool(context.Background(), "search_media", map[string]any{"title": "Dune"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if string(raw) != "null" {
		t.Errorf("raw = %s, want null", raw)
	}

	if body["method"] != "tools/call" || body["jsonrpc"] != "2.0" {
		t.Errorf("body = %v", body)
	}
	params, _ := body["params"].(map[string]any)
	if params["name"] != "search_media" {
		t.Errorf("params = %v", params)
	}
	if !strings.Contains(mustJSON(params["arguments"]), `"title":"Dune"`) {
		t.Errorf("arguments = %v", params["arguments"])
	}
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestHTTPTransport_EventStreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message\n"+
			"data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n"+
			"event: message\n"+
			"data: {\"jsonrpc\":\"2.0\",\"id\":4,\n"+
			"data: \"result\":{\"tools\":[]}}\n\n"+
			"data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/done\"}\n\n")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	raw, err := tr.Send(context.Background(), NewRequest(4, "tools/list", nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(raw) != `{"tools":[]}` {
		t.Errorf("result = %s", raw)
	}
}

func TestSSEMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		id   int64
		want string
	}{
		{"single event", "data: {\"id\":1,\"result\":2}\n\n", 1, `{"id":1,"result":2}`},
		{"no trailing blank line", "data: {\"id\":1,\"result\":2}", 1, `{"id":1,"result":2}`},
		{"crlf lines", "data: {\"id\":1,\"result\":2}\r\n\r\n", 1, `{"id":1,"result":2}`},
		{"no matching id uses last", "data: {\"id\":8}\n\ndata: {\"id\":9}\n\n", 1, `{"id":9}`},
		{"comments and fields ignored", ": ping\nid: 3\nevent: message\ndata:{\"id\":2}\n\n", 2, `{"id":2}`},
		{"no data", ": keepalive\n\n", 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(sseMessage([]byte(tt.body), tt.id)); got != tt.want {
				t.Errorf("sseMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPTransport_EmptyEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		io.WriteString(w, ": keepalive\n\n")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	_, err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	if !errors.Is(err, ErrNotJSON) {
		t.Errorf("error = %v, want ErrNotJSON", err)
	}
}
