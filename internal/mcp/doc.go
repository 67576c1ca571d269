// Package mcp publishes the tools of a remote MoviePilot MCP endpoint
// into the host tool registry.
//
// The remote side speaks JSON-RPC 2.0 over HTTP POST. The client
// discovers tools via tools/list and invokes them via tools/call; each
// request goes through httpkit.Send, so every call gets the per-attempt
// timeout and bounded retry of the service config. Discovered tools are
// renamed with a prefix, made unique within a registration pass and
// flagged optional when they look state-changing.
package mcp
