package moviepilot

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nugget/servicebridge/internal/config"
)

// Operation keys, as used under the endpoints config map.
const (
	OpSearchMedia        = "searchMedia"
	OpSearchTitle        = "searchTitle"
	OpListDownloads      = "listDownloads"
	OpAddDownload        = "addDownload"
	OpPauseDownload      = "pauseDownload"
	OpResumeDownload     = "resumeDownload"
	OpRemoveDownload     = "removeDownload"
	OpListSubscriptions  = "listSubscriptions"
	OpAddSubscription    = "addSubscription"
	OpRemoveSubscription = "removeSubscription"
)

// Endpoint is the path template and method of one REST operation.
type Endpoint struct {
	Path   string
	Method string
}

// DefaultEndpoints is the built-in operation table.
var DefaultEndpoints = map[string]Endpoint{
	OpSearchMedia:        {Path: "/api/v1/search/media/{mediaId}", Method: http.MethodGet},
	OpSearchTitle:        {Path: "/api/v1/search/title", Method: http.MethodGet},
	OpListDownloads:      {Path: "/api/v1/download/", Method: http.MethodGet},
	OpAddDownload:        {Path: "/api/v1/download/add", Method: http.MethodPost},
	OpPauseDownload:      {Path: "/api/v1/download/stop/{hash}", Method: http.MethodGet},
	OpResumeDownload:     {Path: "/api/v1/download/start/{hash}", Method: http.MethodGet},
	OpRemoveDownload:     {Path: "/api/v1/download/{hash}", Method: http.MethodDelete},
	OpListSubscriptions:  {Path: "/api/v1/subscribe/", Method: http.MethodGet},
	OpAddSubscription:    {Path: "/api/v1/subscribe/", Method: http.MethodPost},
	OpRemoveSubscription: {Path: "/api/v1/subscribe/{id}", Method: http.MethodDelete},
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ResolveEndpoints merges per-operation overrides onto the defaults.
// Override methods are uppercased; an unknown method is an error.
// Overrides for unknown operation keys are ignored.
func ResolveEndpoints(overrides map[string]config.EndpointOverride) (map[string]Endpoint, error) {
	out := make(map[string]Endpoint, len(DefaultEndpoints))
	for op, ep := range DefaultEndpoints {
		ov, ok := overrides[op]
		if ok {
			if ov.Path != "" {
				ep.Path = ov.Path
			}
			if ov.Method != "" {
				m := strings.ToUpper(strings.TrimSpace(ov.Method))
				if !validMethods[m] {
					return nil, fmt.Errorf("endpoints.%s: invalid method %q", op, ov.Method)
				}
				ep.Method = m
			}
		}
		out[op] = ep
	}
	return out, nil
}

// UnknownOperations returns the override keys that name no operation,
// sorted.
func UnknownOperations(overrides map[string]config.EndpointOverride) []string {
	var out []string
	for op := range overrides {
		if _, ok := DefaultEndpoints[op]; !ok {
			out = append(out, op)
		}
	}
	sort.Strings(out)
	return out
}
