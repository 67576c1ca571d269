package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ToolDefinition is an MCP tool as returned by tools/list. Schemas are
// kept raw because servers may send any JSON schema document.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`

	// Parameters is the legacy schema field, used when InputSchema is
	// absent.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Client speaks JSON-RPC to a single MCP endpoint. Request ids start at
// 1 and increase monotonically per client.
type Client struct {
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64
}

// NewClient creates an MCP client over the given transport.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		logger:    logger,
	}
}

// Call issues method with params and returns the raw result. Nil params
// are omitted from the request.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	return c.transport.Send(ctx, NewRequest(id, method, params))
}

// ListTools calls tools/list. A result without a tools array yields an
// empty list; entries that do not decode are dropped.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := c.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var result struct {
		Tools json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return []ToolDefinition{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(result.Tools, &items); err != nil {
		return []ToolDefinition{}, nil
	}

	defs := make([]ToolDefinition, 0, len(items))
	for i, item := range items {
		var td ToolDefinition
		if err := json.Unmarshal(item, &td); err != nil {
			c.logger.Debug("skipping undecodable MCP tool", "index", i, "error", err)
			continue
		}
		defs = append(defs, td)
	}

	c.logger.Debug("discovered MCP tools", "count", len(defs))
	return defs, nil
}

// CallTool invokes a tool by name. Nil args are sent as an empty object.
// The raw result is returned unchanged.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	raw, err := c.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	return raw, nil
}
