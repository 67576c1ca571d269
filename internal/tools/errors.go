package tools

import (
	"fmt"
	"strings"
)

// ErrToolUnavailable is returned when a call targets a tool that is not
// in the registry: never published, filtered by the expose list, or
// skipped as optional. Retrying will not help.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}

// ArgumentError reports arguments that do not satisfy a tool's parameter
// schema. The handler is not run.
type ArgumentError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "invalid arguments"
	case 1:
		return "invalid arguments: " + e.Violations[0]
	default:
		return fmt.Sprintf("invalid arguments (%d violations): %s",
			len(e.Violations), strings.Join(e.Violations, "; "))
	}
}
