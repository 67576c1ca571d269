// Package tools defines the host tool registry that integrations publish
// into, and the result shape their handlers return.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Content is one item of a tool result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Result is what a tool handler returns.
type Result struct {
	Content []Content `json:"content"`

	// Data carries the decoded remote value alongside its rendering.
	Data any `json:"data,omitempty"`

	IsError bool `json:"isError,omitempty"`

	// Raw, when set, is a remote result envelope that is handed on
	// verbatim; MarshalJSON returns it unchanged.
	Raw json.RawMessage `json:"-"`
}

// TextResult wraps text in a single-item result.
func TextResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

// MarshalJSON returns Raw untouched when present.
func (r *Result) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain Result
	return json.Marshal((*plain)(r))
}

// Text joins the text items of the result. For a pass-through result the
// raw envelope is decoded first.
func (r *Result) Text() string {
	content := r.Content
	if len(r.Raw) > 0 {
		var env struct {
			Content []Content `json:"content"`
		}
		if err := json.Unmarshal(r.Raw, &env); err == nil {
			content = env.Content
		}
	}
	var parts []string
	for _, c := range content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RegisterOptions are per-registration flags.
type RegisterOptions struct {
	// Optional marks a tool the host may skip or disable without
	// failing the integration, typically one that changes remote state.
	Optional bool
}

// RegisterOption adjusts RegisterOptions.
type RegisterOption func(*RegisterOptions)

// Optional sets the optional flag.
func Optional(optional bool) RegisterOption {
	return func(o *RegisterOptions) { o.Optional = optional }
}

// Registrar is the part of the host an integration registers into.
type Registrar interface {
	RegisterTool(t *Tool, opts ...RegisterOption) error
}

// Host is what an integration receives when it is loaded: the generic
// config tree, a registrar, and a logger.
type Host struct {
	Config map[string]any
	Tools  Registrar
	Logger *slog.Logger
}

// Log returns the host logger, or a discarding one when unset.
func (h Host) Log() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger
}

type entry struct {
	tool     *Tool
	optional bool
	schema   *jsonschema.Schema
}

// Registry holds available tools. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	tools        map[string]*entry
	order        []string
	skipOptional bool
	validator    *Validator
	logger       *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:     make(map[string]*entry),
		validator: NewValidator(),
		logger:    logger,
	}
}

// SetSkipOptional makes later optional registrations no-ops.
func (r *Registry) SetSkipOptional(skip bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipOptional = skip
}

// RegisterTool adds a tool. Names must be unique; a duplicate is
// rejected. When optional tools are being skipped an optional
// registration succeeds without adding anything.
func (r *Registry) RegisterTool(t *Tool, opts ...RegisterOption) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("register tool: missing name")
	}
	if t.Handler == nil {
		return fmt.Errorf("register tool %s: missing handler", t.Name)
	}

	var o RegisterOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if o.Optional && r.skipOptional {
		r.logger.Debug("skipping optional tool", "tool", t.Name)
		return nil
	}
	if _, exists := r.tools[t.Name]; exists {
		r.logger.Error("duplicate tool registration", "tool", t.Name)
		return fmt.Errorf("register tool %s: already registered", t.Name)
	}

	schema, err := r.validator.Compile(t.Parameters)
	if err != nil {
		r.logger.Warn("tool schema does not compile; arguments will not be validated",
			"tool", t.Name, "error", err)
		schema = nil
	}

	r.tools[t.Name] = &entry{tool: t, optional: o.Optional, schema: schema}
	r.order = append(r.order, t.Name)
	return nil
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.tools[name]; e != nil {
		return e.tool
	}
	return nil
}

// IsOptional reports whether name was registered as optional.
func (r *Registry) IsOptional(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.tools[name]
	return e != nil && e.optional
}

// List returns the tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name. Arguments are validated against the
// tool's parameter schema first; a nil map is treated as empty. The call
// gets a fresh id, available to the handler via CallIDFromContext.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	r.mu.RLock()
	e := r.tools[name]
	r.mu.RUnlock()
	if e == nil {
		return nil, &ErrToolUnavailable{ToolName: name}
	}

	if args == nil {
		args = map[string]any{}
	}
	if e.schema != nil {
		if err := r.validator.Validate(e.schema, args); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	callID := uuid.NewString()
	ctx = WithCallID(ctx, callID)
	r.logger.Debug("executing tool", "tool", name, "call_id", callID)

	result, err := e.tool.Handler(ctx, args)
	if err != nil {
		r.logger.Debug("tool failed", "tool", name, "call_id", callID, "error", err)
		return nil, err
	}
	if result == nil {
		result = &Result{}
	}
	return result, nil
}

// ExecuteJSON is Execute with arguments given as a JSON object.
func (r *Registry) ExecuteJSON(ctx context.Context, name string, argsJSON string) (*Result, error) {
	var args map[string]any
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	return r.Execute(ctx, name, args)
}
