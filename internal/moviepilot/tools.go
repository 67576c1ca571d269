package moviepilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/servicebridge/internal/tools"
)

// ErrMissingArgument is returned when a required tool argument is
// absent or empty.
var ErrMissingArgument = errors.New("missing required argument")

// operation binds one REST endpoint to a published tool.
type operation struct {
	key         string
	name        string
	description string
	optional    bool
	parameters  map[string]any

	// build turns tool arguments into call options. It validates
	// required arguments before any request is made.
	build func(args map[string]any) (CallOptions, error)
}

// idType accepts identifiers given as strings or JSON numbers.
var idType = []string{"string", "number"}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func hashArgs(args map[string]any) (CallOptions, error) {
	hash, err := requireString(args, "hash", false)
	if err != nil {
		return CallOptions{}, err
	}
	return CallOptions{PathParams: map[string]string{"hash": hash}}, nil
}

var hashSchema = objectSchema(map[string]any{
	"hash": map[string]any{
		"type":        "string",
		"description": "Torrent info hash as reported by list_downloads",
	},
}, "hash")

// operations is the fixed tool set, in registration order.
var operations = []operation{
	{
		key:  OpSearchMedia,
		name: "moviepilot_search_media",
		description: "Search MoviePilot sites for torrents of a specific media item. " +
			"mediaId is a TMDB/Douban id such as \"tmdb:603\" or a bare number.",
		parameters: objectSchema(map[string]any{
			"mediaId": map[string]any{"type": idType, "description": "Media identifier"},
			"mtype":   map[string]any{"type": "string", "description": "Media type filter (movie or tv)"},
			"area":    map[string]any{"type": "string", "description": "Match area: title or imdbid"},
			"season":  map[string]any{"type": "integer", "description": "Season number for TV shows"},
		}, "mediaId"),
		build: func(args map[string]any) (CallOptions, error) {
			id, err := requireString(args, "mediaId", true)
			if err != nil {
				return CallOptions{}, err
			}
			return CallOptions{
				PathParams: map[string]string{"mediaId": id},
				Query:      pick(args, "mtype", "area", "season"),
			}, nil
		},
	},
	{
		key:         OpSearchTitle,
		name:        "moviepilot_search_title",
		description: "Search MoviePilot sites for torrents by keyword.",
		parameters: objectSchema(map[string]any{
			"title": map[string]any{"type": "string", "description": "Title or keyword to search for"},
			"page":  map[string]any{"type": "integer", "description": "Result page, starting at 1"},
		}, "title"),
		build: func(args map[string]any) (CallOptions, error) {
			title, err := requireString(args, "title", false)
			if err != nil {
				return CallOptions{}, err
			}
			q := pick(args, "page")
			q["keyword"] = title
			return CallOptions{Query: q}, nil
		},
	},
	{
		key:         OpListDownloads,
		name:        "moviepilot_list_downloads",
		description: "List torrents currently in the MoviePilot downloaders.",
		parameters: objectSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Only list this downloader"},
		}),
		build: func(args map[string]any) (CallOptions, error) {
			return CallOptions{Query: pick(args, "name")}, nil
		},
	},
	{
		key:         OpAddDownload,
		name:        "moviepilot_add_download",
		description: "Add a torrent or magnet link to a MoviePilot downloader.",
		optional:    true,
		parameters: objectSchema(map[string]any{
			"url":        map[string]any{"type": "string", "description": "Torrent URL or magnet link"},
			"downloader": map[string]any{"type": "string", "description": "Target downloader name"},
			"savePath":   map[string]any{"type": "string", "description": "Download directory"},
		}, "url"),
		build: func(args map[string]any) (CallOptions, error) {
			u, err := requireString(args, "url", false)
			if err != nil {
				return CallOptions{}, err
			}
			body := pick(args, "downloader")
			body["url"] = u
			if p, ok := args["savePath"]; ok && p != nil {
				body["save_path"] = p
			}
			return CallOptions{Body: body}, nil
		},
	},
	{
		key:         OpPauseDownload,
		name:        "moviepilot_pause_download",
		description: "Pause a torrent in the MoviePilot downloader.",
		optional:    true,
		parameters:  hashSchema,
		build:       hashArgs,
	},
	{
		key:         OpResumeDownload,
		name:        "moviepilot_resume_download",
		description: "Resume a paused torrent in the MoviePilot downloader.",
		optional:    true,
		parameters:  hashSchema,
		build:       hashArgs,
	},
	{
		key:         OpRemoveDownload,
		name:        "moviepilot_remove_download",
		description: "Remove a torrent from the MoviePilot downloader.",
		optional:    true,
		parameters:  hashSchema,
		build:       hashArgs,
	},
	{
		key:         OpListSubscriptions,
		name:        "moviepilot_list_subscriptions",
		description: "List MoviePilot subscriptions.",
		parameters:  objectSchema(map[string]any{}),
		build: func(map[string]any) (CallOptions, error) {
			return CallOptions{}, nil
		},
	},
	{
		key:         OpAddSubscription,
		name:        "moviepilot_add_subscription",
		description: "Subscribe to a movie or TV show so MoviePilot downloads it when available.",
		optional:    true,
		parameters: objectSchema(map[string]any{
			"title":  map[string]any{"type": "string", "description": "Media title"},
			"tmdbId": map[string]any{"type": idType, "description": "TMDB id"},
			"year":   map[string]any{"type": "string", "description": "Release year"},
			"type":   map[string]any{"type": "string", "description": "Media type (movie or tv)"},
			"season": map[string]any{"type": "integer", "description": "Season number for TV shows"},
		}, "title"),
		build: func(args map[string]any) (CallOptions, error) {
			title, err := requireString(args, "title", false)
			if err != nil {
				return CallOptions{}, err
			}
			body := pick(args, "year", "type", "season")
			body["name"] = title
			if id, ok := args["tmdbId"]; ok && id != nil {
				body["tmdbid"] = id
			}
			return CallOptions{Body: body}, nil
		},
	},
	{
		key:         OpRemoveSubscription,
		name:        "moviepilot_remove_subscription",
		description: "Remove a MoviePilot subscription by id.",
		optional:    true,
		parameters: objectSchema(map[string]any{
			"id": map[string]any{"type": idType, "description": "Subscription id from list_subscriptions"},
		}, "id"),
		build: func(args map[string]any) (CallOptions, error) {
			id, err := requireString(args, "id", true)
			if err != nil {
				return CallOptions{}, err
			}
			return CallOptions{PathParams: map[string]string{"id": id}}, nil
		},
	},
}

// requireString returns a non-empty string argument. With numeric set,
// JSON numbers are accepted and formatted without an exponent.
func requireString(args map[string]any, key string, numeric bool) (string, error) {
	switch v := args[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
	case float64, float32, int, int64, json.Number:
		if numeric {
			return formatScalar(v), nil
		}
	}
	return "", fmt.Errorf("%w: %s must be a non-empty string", ErrMissingArgument, key)
}

// pick copies the named, non-nil arguments.
func pick(args map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out
}

// tool builds the published tool for op against client.
func (op operation) tool(client *Client, ep Endpoint) *tools.Tool {
	return &tools.Tool{
		Name:        op.name,
		Description: op.description,
		Parameters:  op.parameters,
		Handler: func(ctx context.Context, args map[string]any) (*tools.Result, error) {
			opts, err := op.build(args)
			if err != nil {
				return nil, err
			}
			data, err := client.Call(ctx, ep.Method, ep.Path, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op.name, err)
			}
			return dataResult(data), nil
		},
	}
}

// dataResult renders data as one text item and keeps the value itself
// alongside.
func dataResult(data any) *tools.Result {
	var text string
	if s, ok := data.(string); ok {
		text = s
	} else if b, err := json.MarshalIndent(data, "", "  "); err == nil {
		text = string(b)
	} else {
		text = fmt.Sprint(data)
	}
	res := tools.TextResult(text)
	res.Data = data
	return res
}
