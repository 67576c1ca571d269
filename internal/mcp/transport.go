package mcp

import (
	"context"
	"encoding/json"
)

// Transport delivers one JSON-RPC request and returns the raw result
// member of the response. Implementations apply the envelope rules:
// transport failures, non-2xx statuses, non-object bodies, truthy error
// members and a missing result are all returned as errors.
type Transport interface {
	Send(ctx context.Context, req *Request) (json.RawMessage, error)
}
