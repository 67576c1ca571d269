package tools

import "context"

type contextKey string

const callIDKey contextKey = "call_id"

// WithCallID adds the tool call id to the context.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey, id)
}

// CallIDFromContext extracts the tool call id from the context.
// Returns "" if not set.
func CallIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(callIDKey).(string); ok {
		return id
	}
	return ""
}
