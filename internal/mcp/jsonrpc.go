package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nugget/servicebridge/internal/httpkit"
)

// jsonrpcVersion is the JSON-RPC protocol version used by MCP.
const jsonrpcVersion = "2.0"

// Envelope errors.
var (
	// ErrNotJSON is returned when a response body is empty or is not a
	// JSON object.
	ErrNotJSON = errors.New("MCP response was not JSON")

	// ErrMissingResult is returned when a response object has neither
	// a truthy error nor a result member.
	ErrMissingResult = errors.New("MCP response missing result")
)

// Request is a JSON-RPC 2.0 request message.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest creates a JSON-RPC 2.0 request with the given method and params.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// RPCError is a JSON-RPC error reported by the server.
type RPCError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for RPCError.
func (e *RPCError) Error() string {
	return "MCP error: " + e.Message
}

// invalidJSONError reports a body that does not parse. It matches
// ErrNotJSON under errors.Is.
type invalidJSONError struct {
	body string
}

func (e *invalidJSONError) Error() string {
	return "invalid JSON response: " + e.body
}

func (e *invalidJSONError) Is(target error) bool {
	return target == ErrNotJSON
}

// decodeEnvelope applies the response rules in order: the body must be a
// JSON object; a truthy error member fails the call; a result member
// must be present. The raw result is returned, which may be the literal
// null.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrNotJSON
	}
	if !json.Valid(trimmed) {
		return nil, &invalidJSONError{body: httpkit.TrimForError(string(body), httpkit.MaxErrorText)}
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil || env == nil {
		// Valid JSON that is not an object: null, array, scalar.
		return nil, ErrNotJSON
	}

	if rawErr, ok := env["error"]; ok && truthy(rawErr) {
		return nil, decodeRPCError(rawErr)
	}

	result, ok := env["result"]
	if !ok {
		return nil, ErrMissingResult
	}
	return result, nil
}

// decodeRPCError reads the message of an error member. Anything without
// a message becomes "Unknown MCP error".
func decodeRPCError(raw json.RawMessage) *RPCError {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return &RPCError{Message: "Unknown MCP error"}
	}
	msg, ok := obj["message"]
	if !ok || !truthy(msg) {
		return &RPCError{Message: "Unknown MCP error"}
	}

	out := &RPCError{Message: jsonText(msg)}
	if code, ok := obj["code"]; ok {
		json.Unmarshal(code, &out.Code)
	}
	return out
}

// truthy follows JavaScript truthiness for a JSON value: null, false, 0
// and "" are false; everything else, including empty objects and
// arrays, is true.
func truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`:
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return true
}

// jsonText renders a JSON value as plain text: strings unquoted,
// everything else as its JSON form.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
