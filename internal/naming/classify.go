package naming

import "strings"

// MutatingTokens are substrings that mark a remote tool as changing state
// on the server. A raw name containing any of them (case-insensitive) is
// published as optional.
//
// This is a substring heuristic, so "settings" matches "set" and
// "poster" matches "post". Prefer Classifier.Explicit when the remote
// tool set is known.
var MutatingTokens = []string{
	"add",
	"create",
	"update",
	"delete",
	"remove",
	"subscribe",
	"pause",
	"resume",
	"start",
	"stop",
	"enable",
	"disable",
	"set",
	"put",
	"post",
}

// LooksMutating reports whether raw contains one of MutatingTokens.
func LooksMutating(raw string) bool {
	lower := strings.ToLower(raw)
	for _, token := range MutatingTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// Classifier decides whether a published tool is optional, meaning the
// host may skip or disable it without failing the integration.
type Classifier struct {
	// Optional lists tools that are always optional, matched by raw,
	// mapped, or normalized raw name.
	Optional Set

	// Explicit, when non-nil, replaces the token heuristic: only tools
	// it matches (plus Optional) are optional.
	Explicit Set
}

// IsOptional classifies one tool. It is a pure function of its inputs.
func (c Classifier) IsOptional(raw, mapped string) bool {
	if c.Optional.MatchesAny(raw, mapped) {
		return true
	}
	if c.Explicit != nil {
		return c.Explicit.MatchesAny(raw, mapped)
	}
	return LooksMutating(raw)
}
