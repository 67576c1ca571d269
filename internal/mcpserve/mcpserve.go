// Package mcpserve exposes a tool registry to MCP clients over stdio or
// streamable HTTP.
package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nugget/servicebridge/internal/tools"
)

// NewServer builds an MCP server carrying every tool in reg. The tool
// list is captured at call time.
func NewServer(reg *tools.Registry, name, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	for _, t := range reg.List() {
		tool, err := toMCPTool(t)
		if err != nil {
			logger.Warn("skipping tool with unencodable schema", "tool", t.Name, "error", err)
			continue
		}
		s.AddTool(tool, handler(reg, t.Name, logger))
	}
	return s
}

func toMCPTool(t *tools.Tool) (mcp.Tool, error) {
	params := t.Parameters
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	schema, err := json.Marshal(params)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("marshal schema: %w", err)
	}
	return mcp.NewToolWithRawSchema(t.Name, t.Description, schema), nil
}

// handler adapts a registry tool to an MCP tool handler. Tool failures
// are reported as error results rather than protocol errors.
func handler(reg *tools.Registry, name string, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := reg.Execute(ctx, name, req.GetArguments())
		if err != nil {
			logger.Debug("tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return ToCallToolResult(res), nil
	}
}

// ToCallToolResult converts a tool result to its MCP form. A pass-through
// envelope is decoded as is; otherwise text and image items map to their
// MCP content types and anything else is rendered as JSON text.
func ToCallToolResult(res *tools.Result) *mcp.CallToolResult {
	if len(res.Raw) > 0 {
		var out mcp.CallToolResult
		if err := json.Unmarshal(res.Raw, &out); err == nil {
			return &out
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(res.Raw))},
			IsError: res.IsError,
		}
	}

	out := &mcp.CallToolResult{IsError: res.IsError}
	for _, c := range res.Content {
		switch c.Type {
		case "text":
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		case "image":
			out.Content = append(out.Content, mcp.NewImageContent(c.Data, c.MimeType))
		default:
			b, _ := json.Marshal(c)
			out.Content = append(out.Content, mcp.NewTextContent(string(b)))
		}
	}
	if m, ok := res.Data.(map[string]any); ok {
		out.StructuredContent = m
	}
	if out.Content == nil {
		out.Content = []mcp.Content{}
	}
	return out
}

// ServeStdio serves s on the given streams until ctx is cancelled or
// stdin closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, stdin, stdout)
}
