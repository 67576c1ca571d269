// Package naming turns remote tool names into safe, unique identifiers
// for the host tool registry and classifies which published tools are
// optional.
package naming

import (
	"regexp"
	"strconv"
	"strings"
)

// Fallback is used when a name normalizes to nothing.
const Fallback = "moviepilot_tool"

// DefaultPrefix is prepended to every published MCP tool name.
const DefaultPrefix = "moviepilot"

var (
	nonAlnumRe    = regexp.MustCompile(`[^A-Za-z0-9]+`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// Normalize replaces every run of non-alphanumeric characters with a
// single underscore, collapses repeated underscores, trims underscores
// from both ends, and lowercases. An empty result becomes [Fallback].
// Normalize is idempotent.
func Normalize(name string) string {
	s := nonAlnumRe.ReplaceAllString(name, "_")
	s = underscoresRe.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	if s == "" {
		return Fallback
	}
	return s
}

// Prefix returns the normalized tool prefix, defaulting to
// [DefaultPrefix] when p is empty.
func Prefix(p string) string {
	if p == "" {
		p = DefaultPrefix
	}
	return Normalize(p)
}

// Mapped returns the published base name for a remote tool:
// Normalize(prefix + "_" + remote).
func Mapped(prefix, remote string) string {
	return Normalize(prefix + "_" + remote)
}

// Allocator hands out names that are unique within one registration
// pass. The zero value is ready to use; it is not safe for concurrent use.
type Allocator struct {
	used map[string]bool
}

// Claim returns base if it is still free, otherwise base_2, base_3, ...
// whichever comes first. The returned name is marked used.
func (a *Allocator) Claim(base string) string {
	if a.used == nil {
		a.used = make(map[string]bool)
	}
	name := base
	for suffix := 2; a.used[name]; suffix++ {
		name = base + "_" + strconv.Itoa(suffix)
	}
	a.used[name] = true
	return name
}

// Len returns how many names have been claimed.
func (a *Allocator) Len() int {
	return len(a.used)
}

// Set is a string membership set built from a config list.
type Set map[string]bool

// NewSet builds a Set; an empty list yields an empty (non-nil) set.
func NewSet(items []string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// MatchesAny reports whether the raw remote name, its mapped name, or its
// normalized raw name is in the set. This is the lookup rule shared by the
// expose allow-list and the optional-tools set.
func (s Set) MatchesAny(raw, mapped string) bool {
	return s[raw] || s[mapped] || s[Normalize(raw)]
}
