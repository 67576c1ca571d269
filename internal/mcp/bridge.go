package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nugget/servicebridge/internal/config"
	"github.com/nugget/servicebridge/internal/naming"
	"github.com/nugget/servicebridge/internal/tools"
)

// serviceName is the services entry this integration reads.
const serviceName = "moviepilot"

// Register is the MCP integration entry point. It resolves the
// moviepilot service from the host config, discovers the remote tools
// and publishes them. Absent or invalid config and discovery failures
// are logged and leave the registry untouched; only a host without a
// registrar is an error.
func Register(ctx context.Context, host tools.Host) error {
	if host.Tools == nil {
		return errors.New("mcp: host has no tool registrar")
	}
	logger := host.Log().With("integration", config.MCPPluginID)

	svc, err := config.ResolvePluginConfig(host.Config, config.MCPPluginID).Service(serviceName)
	if err != nil {
		logger.Error("invalid MoviePilot MCP config; skipping tool registration", "error", err)
		return nil
	}
	if svc == nil || svc.BaseURL == "" {
		logger.Info("MoviePilot MCP not configured; skipping tool registration")
		return nil
	}

	client, err := NewHTTPClient(svc, logger)
	if err != nil {
		logger.Error("invalid MoviePilot MCP baseUrl", "error", err)
		return nil
	}

	n, err := BridgeTools(ctx, client, svc, host.Tools, logger)
	if err != nil {
		logger.Error("MoviePilot MCP tools/list failed", "error", err)
		return nil
	}
	if svc.Debug {
		logger.Info("registered MoviePilot MCP tools", "count", n)
	}
	return nil
}

// BridgeTools discovers tools from client and registers each on reg
// under a prefixed, normalized, collision-free name. It returns the
// number of names allocated. A discovery failure registers nothing.
//
// Filtering and classification follow svc:
//   - a non-empty Expose list keeps only tools it names (raw, mapped or
//     normalized raw name);
//   - OptionalTools, MutatingTools and the name-token heuristic decide
//     the optional flag.
func BridgeTools(ctx context.Context, client *Client, svc *config.ServiceConfig, reg tools.Registrar, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	defs, err := client.ListTools(ctx)
	if err != nil {
		return 0, err
	}
	if len(defs) == 0 {
		logger.Warn("MoviePilot MCP returned no tools; nothing to register")
		return 0, nil
	}

	prefix := naming.Prefix(svc.ToolPrefix)
	expose := naming.NewSet(svc.Expose)
	classifier := naming.Classifier{Optional: naming.NewSet(svc.OptionalTools)}
	if svc.MutatingTools != nil {
		classifier.Explicit = naming.NewSet(svc.MutatingTools)
	}

	var names naming.Allocator
	for _, td := range defs {
		if td.Name == "" {
			continue
		}

		base := naming.Mapped(prefix, td.Name)
		if len(expose) > 0 && !expose.MatchesAny(td.Name, base) {
			continue
		}

		name := names.Claim(base)
		optional := classifier.IsOptional(td.Name, name)

		if err := reg.RegisterTool(bridgeTool(client, name, td), tools.Optional(optional)); err != nil {
			logger.Error("failed to register MCP tool", "tool", name, "error", err)
			continue
		}

		logger.Debug("bridged MCP tool",
			"mcp_name", td.Name,
			"tool", name,
			"optional", optional,
		)
	}

	return names.Len(), nil
}

// bridgeTool creates a tool that proxies calls to the MCP server.
func bridgeTool(client *Client, name string, td ToolDefinition) *tools.Tool {
	// Capture the original MCP tool name for the call.
	mcpName := td.Name

	description := td.Description
	if description == "" {
		description = fmt.Sprintf("MoviePilot MCP tool: %s", td.Name)
	}

	return &tools.Tool{
		Name:        name,
		Description: description,
		Parameters:  toolSchema(td),
		Handler: func(ctx context.Context, args map[string]any) (*tools.Result, error) {
			raw, err := client.CallTool(ctx, mcpName, args)
			if err != nil {
				return nil, err
			}
			return toResult(raw), nil
		},
	}
}

// toolSchema picks inputSchema, then the legacy parameters field, then
// a permissive object schema.
func toolSchema(td ToolDefinition) map[string]any {
	for _, raw := range []json.RawMessage{td.InputSchema, td.Parameters} {
		if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err == nil && schema != nil {
			return schema
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
	}
}

// toResult passes a result carrying a content array through verbatim and
// wraps anything else as one text item.
func toResult(raw json.RawMessage) *tools.Result {
	var env struct {
		Content []json.RawMessage `json:"content"`
		IsError bool              `json:"isError"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Content != nil {
		return &tools.Result{Raw: raw, IsError: env.IsError}
	}
	return tools.TextResult(stringify(raw))
}

// stringify renders a result for a text item: strings as-is, everything
// else as JSON indented by two spaces.
func stringify(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
