package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Integration ids. Both read the same services.moviepilot entry.
const (
	MCPPluginID  = "openclaw-local-services-bridge"
	RESTPluginID = "openclaw-moviepilot-rest"
)

// Service defaults applied by the ServiceConfig accessors.
const (
	DefaultTimeout          = 15000 * time.Millisecond
	DefaultRetries          = 1
	DefaultAPIKeyHeader     = "X-API-KEY"
	DefaultAPIKeyQueryParam = "apikey"
)

// API key delivery modes.
const (
	KeyModeHeader = "header"
	KeyModeQuery  = "query"
	KeyModeBearer = "bearer"
	KeyModeNone   = "none"
)

// Shape names the layout a host config blob was found in.
type Shape int

const (
	// ShapeEmpty means nothing usable was found.
	ShapeEmpty Shape = iota
	// ShapeServices is a blob with a top-level "services" key.
	ShapeServices
	// ShapePluginEntry is a blob nesting the integration config under
	// plugins.entries.<id>.config.
	ShapePluginEntry
)

func (s Shape) String() string {
	switch s {
	case ShapeServices:
		return "services"
	case ShapePluginEntry:
		return "plugin-entry"
	default:
		return "empty"
	}
}

// PluginConfig is the per-integration slice of the host config. Service
// entries are kept undecoded so a malformed entry only affects lookups
// of that entry.
type PluginConfig struct {
	Shape    Shape
	Services map[string]any
}

// Service decodes the named service entry. It returns nil and no error
// when the entry is absent, and an error when it is present but does
// not decode.
func (p PluginConfig) Service(name string) (*ServiceConfig, error) {
	raw, ok := p.Services[name]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("services.%s: expected a mapping, got %T", name, raw)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("services.%s: %w", name, err)
	}
	var svc ServiceConfig
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, fmt.Errorf("services.%s: %w", name, err)
	}
	return &svc, nil
}

// ServiceConfig is one remote service's connection settings. Zero-valued
// fields fall back to defaults through the accessor methods; pointer
// fields distinguish an explicit zero from an absent value.
type ServiceConfig struct {
	BaseURL          string `yaml:"baseUrl"`
	APIKey           string `yaml:"apiKey"`
	APIKeyMode       string `yaml:"apiKeyMode"`
	APIKeyHeader     string `yaml:"apiKeyHeader"`
	APIKeyQueryParam string `yaml:"apiKeyQueryParam"`
	TimeoutMs        *int   `yaml:"timeoutMs"`
	Retries          *int   `yaml:"retries"`
	Debug            bool   `yaml:"debug"`

	// MCP integration.
	EndpointPath  string   `yaml:"endpointPath"`
	ToolPrefix    string   `yaml:"toolPrefix"`
	Expose        []string `yaml:"expose"`
	OptionalTools []string `yaml:"optionalTools"`
	// MutatingTools, when set, replaces the name-token heuristic for
	// deciding which MCP tools are optional.
	MutatingTools []string `yaml:"mutatingTools"`

	// REST integration.
	Endpoints map[string]EndpointOverride `yaml:"endpoints"`
}

// EndpointOverride replaces the path and/or method of one REST operation.
type EndpointOverride struct {
	Path   string `yaml:"path"`
	Method string `yaml:"method"`
}

// Timeout returns the per-attempt timeout. An explicit 0 disables it.
func (s *ServiceConfig) Timeout() time.Duration {
	if s.TimeoutMs == nil || *s.TimeoutMs < 0 {
		return DefaultTimeout
	}
	return time.Duration(*s.TimeoutMs) * time.Millisecond
}

// RetryCount returns how many retries follow the first attempt.
func (s *ServiceConfig) RetryCount() int {
	if s.Retries == nil || *s.Retries < 0 {
		return DefaultRetries
	}
	return *s.Retries
}

// KeyMode returns the API key delivery mode, defaulting to header.
func (s *ServiceConfig) KeyMode() string {
	if s.APIKeyMode == "" {
		return KeyModeHeader
	}
	return strings.ToLower(s.APIKeyMode)
}

// KeyHeader returns the header used in header mode.
func (s *ServiceConfig) KeyHeader() string {
	if s.APIKeyHeader == "" {
		return DefaultAPIKeyHeader
	}
	return s.APIKeyHeader
}

// KeyQueryParam returns the query parameter used in query mode.
func (s *ServiceConfig) KeyQueryParam() string {
	if s.APIKeyQueryParam == "" {
		return DefaultAPIKeyQueryParam
	}
	return s.APIKeyQueryParam
}

// AuthHeaders returns the headers that carry the key in header mode.
// Other modes, and an empty key, contribute nothing.
func (s *ServiceConfig) AuthHeaders() http.Header {
	h := http.Header{}
	if s.APIKey != "" && s.KeyMode() == KeyModeHeader {
		h.Set(s.KeyHeader(), s.APIKey)
	}
	return h
}

// ResolvePluginConfig extracts the integration config for pluginID from
// a generic host config blob. It accepts either a blob with a top-level
// "services" key or one nesting the config under
// plugins.entries.<pluginID>.config. Anything else, including a
// "services" member that is not a mapping, yields an empty PluginConfig.
// Entries are not decoded here; see [PluginConfig.Service]. It never
// fails.
func ResolvePluginConfig(blob map[string]any, pluginID string) PluginConfig {
	empty := PluginConfig{Shape: ShapeEmpty, Services: map[string]any{}}

	shape, node := detectShape(blob, pluginID)
	if shape == ShapeEmpty {
		return empty
	}
	cfg, ok := asMap(node)
	if !ok {
		return empty
	}

	out := PluginConfig{Shape: shape, Services: map[string]any{}}
	raw, present := cfg["services"]
	if !present || raw == nil {
		return out
	}
	services, ok := asMap(raw)
	if !ok {
		return empty
	}
	out.Services = services
	return out
}

// detectShape locates the node holding the integration config.
func detectShape(blob map[string]any, pluginID string) (Shape, any) {
	if blob == nil {
		return ShapeEmpty, nil
	}
	if _, ok := blob["services"]; ok {
		return ShapeServices, blob
	}

	plugins, ok := asMap(blob["plugins"])
	if !ok {
		return ShapeEmpty, nil
	}
	entries, ok := asMap(plugins["entries"])
	if !ok {
		return ShapeEmpty, nil
	}
	entry, ok := asMap(entries[pluginID])
	if !ok {
		return ShapeEmpty, nil
	}
	cfg, ok := entry["config"]
	if !ok {
		return ShapeEmpty, nil
	}
	return ShapePluginEntry, cfg
}

// asMap accepts both map shapes a generic decoder can produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
